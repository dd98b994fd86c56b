package scheduler

import "time"

// DeadlineBudgetFraction is the share of the maximum invocation duration an
// invocation may use before it stops producing new work.
const DeadlineBudgetFraction = 0.9

// Guard tracks the wall-clock budget of one invocation. It is created at the
// start of Run and consulted between units of work.
type Guard struct {
	clock  Clock
	start  time.Time
	budget time.Duration
}

// NewGuard starts a guard whose budget is DeadlineBudgetFraction of
// maxDuration. A nil clock means time.Now.
func NewGuard(maxDuration time.Duration, clock Clock) *Guard {
	if clock == nil {
		clock = time.Now
	}
	return &Guard{
		clock:  clock,
		start:  clock(),
		budget: time.Duration(float64(maxDuration) * DeadlineBudgetFraction),
	}
}

// Exceeded reports whether more than the budget has elapsed since the guard
// was created.
func (g *Guard) Exceeded() bool {
	return g.Elapsed() > g.budget
}

// Elapsed returns the time since the guard was created.
func (g *Guard) Elapsed() time.Duration {
	return g.clock().Sub(g.start)
}

// Budget returns the soft deadline duration.
func (g *Guard) Budget() time.Duration {
	return g.budget
}
