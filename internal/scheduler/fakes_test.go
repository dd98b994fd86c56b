package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/mock"

	"reportpoller/internal/config"
	"reportpoller/internal/types"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeSleeper records requested sleeps and advances the clock instead of
// blocking.
type fakeSleeper struct {
	clock  *fakeClock
	sleeps []time.Duration
	err    error
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	if s.err != nil {
		return s.err
	}
	if s.clock != nil {
		s.clock.Advance(d)
	}
	return nil
}

// fakeQueue is a WorkQueue that replays a depth sequence (the last value
// repeats) and records every sent item. events captures the interleaving of
// depth reads and sends.
type fakeQueue struct {
	depths   []int
	depthErr error

	sent    []types.WorkItem
	sendErr error
	// failOnSend fails the Nth send (1-based) with sendErr when set.
	failOnSend int
	// onSend runs after every successful send.
	onSend func()

	events []string
}

func (q *fakeQueue) ApproximateCount(_ context.Context) (int, error) {
	q.events = append(q.events, "depth")
	if q.depthErr != nil {
		return 0, q.depthErr
	}
	if len(q.depths) == 0 {
		return 0, nil
	}
	d := q.depths[0]
	if len(q.depths) > 1 {
		q.depths = q.depths[1:]
	}
	return d, nil
}

func (q *fakeQueue) Send(_ context.Context, item types.WorkItem) error {
	q.events = append(q.events, "send")
	if q.sendErr != nil && (q.failOnSend == 0 || q.failOnSend == len(q.sent)+1) {
		return q.sendErr
	}
	q.sent = append(q.sent, item)
	if q.onSend != nil {
		q.onSend()
	}
	return nil
}

// memBlob is an in-memory watermark.BlobStore.
type memBlob struct {
	body    string
	gets    int
	posts   []string
	postErr error
	// failOnPost fails the Nth post (1-based) with postErr when set.
	failOnPost int
}

func (m *memBlob) Get(_ context.Context) (string, error) {
	m.gets++
	return m.body, nil
}

func (m *memBlob) Post(_ context.Context, body string) error {
	if m.postErr != nil && (m.failOnPost == 0 || m.failOnPost == len(m.posts)+1) {
		return m.postErr
	}
	m.posts = append(m.posts, body)
	m.body = body
	return nil
}

// mockMetrics is a testify mock for MetricsPublisher.
type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) PublishRun(ctx context.Context, summary RunSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

// mockHistory is a testify mock for RunHistory.
type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Start(ctx context.Context, in TriggerInput, startedAt time.Time) (int64, error) {
	args := m.Called(ctx, in, startedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockHistory) Finish(ctx context.Context, id int64, summary RunSummary, runErr error) error {
	args := m.Called(ctx, id, summary, runErr)
	return args.Error(0)
}

var errBoom = errors.New("boom")

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		FetchDelayMinutes:           10,
		CalendarFetchDelayHours:     6,
		ChatFetchDelayDays:          1,
		UserAccountsFetchDelayHours: 3,
		LoginFetchDelayHours:        6,
		MaxWindowMinutes:            5,
		MaxQueueDepth:               1000,
		MaxInvocationMinutes:        3,
		BackpressurePollInterval:    15 * time.Second,
		PastDueTolerance:            time.Minute,
	}
}

func mustTime(s string) time.Time {
	t, err := types.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return t
}
