package watermark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"reportpoller/internal/types"
)

// BootstrapLookback is how far behind "now" a freshly initialized activity
// starts.
const BootstrapLookback = 5 * time.Minute

// BlobStore is the durable single-value store holding the watermark document.
// Get returns "" with a nil error when nothing has been stored yet.
type BlobStore interface {
	Get(ctx context.Context) (string, error)
	Post(ctx context.Context, body string) error
}

// LoadResult describes how the returned Document was derived.
type LoadResult struct {
	Kind StateKind
	// Bootstrapped lists configured activities that were initialized to the
	// bootstrap watermark instead of a persisted value.
	Bootstrapped []types.Activity
}

// Normalized reports whether the in-memory document differs in shape from
// what is persisted, i.e. it should be written back before it is relied on.
func (r LoadResult) Normalized() bool {
	return r.Kind != StateDocument || len(r.Bootstrapped) > 0
}

// Adapter loads and saves the watermark document for a fixed activity set.
type Adapter struct {
	store      BlobStore
	activities []types.Activity
	logger     *slog.Logger
}

// NewAdapter creates an Adapter over store for the configured activities.
func NewAdapter(store BlobStore, activities []types.Activity, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		store:      store,
		activities: activities,
		logger:     logger,
	}
}

// Load reads the persisted state and resolves it into a Document with an
// entry for every configured activity. Absent, legacy and corrupt state are
// recovered locally; only a store read failure is returned as an error.
func (a *Adapter) Load(ctx context.Context, now time.Time) (Document, LoadResult, error) {
	raw, err := a.store.Get(ctx)
	if err != nil {
		return nil, LoadResult{}, fmt.Errorf("reading watermark state: %w", err)
	}

	state := Decode(raw)
	doc, result := a.resolve(ctx, state, now)
	return doc, result, nil
}

// resolve turns a decoded State into a complete Document.
func (a *Adapter) resolve(ctx context.Context, state State, now time.Time) (Document, LoadResult) {
	bootstrap := now.UTC().Add(-BootstrapLookback)
	result := LoadResult{Kind: state.Kind}
	doc := make(Document, len(a.activities))

	switch state.Kind {
	case StateEmpty:
		a.logger.InfoContext(ctx, "no watermark state found, initializing all activities",
			"bootstrap_watermark", types.FormatTimestamp(bootstrap),
		)

	case StateLegacy:
		a.logger.InfoContext(ctx, "migrating legacy single-timestamp watermark state",
			"legacy_watermark", types.FormatTimestamp(state.Legacy),
		)
		for _, activity := range a.activities {
			doc.Set(activity, state.Legacy)
		}

	case StateDocument:
		configured := make(map[string]types.Activity, len(a.activities))
		for _, activity := range a.activities {
			configured[string(activity)] = activity
		}
		for key, value := range state.Entries {
			activity, ok := configured[key]
			if !ok {
				doc[key] = value
				continue
			}
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				a.logger.WarnContext(ctx, "non-string watermark for configured activity, reinitializing",
					"activity", key,
					"value", truncate(string(value), 256),
				)
				continue
			}
			t, err := types.ParseTimestamp(s)
			if err != nil {
				a.logger.WarnContext(ctx, "unparseable watermark for configured activity, reinitializing",
					"activity", key,
					"value", truncate(s, 256),
				)
				continue
			}
			doc.Set(activity, t)
		}

	case StateCorrupt:
		a.logger.WarnContext(ctx, "watermark state is neither a document nor a timestamp, reinitializing all activities",
			"raw", truncate(state.Raw, 256),
			"bootstrap_watermark", types.FormatTimestamp(bootstrap),
		)
	}

	for _, activity := range a.activities {
		if _, ok := doc.Get(activity); ok {
			continue
		}
		doc.Set(activity, bootstrap)
		result.Bootstrapped = append(result.Bootstrapped, activity)
	}

	return doc, result
}

// Save writes the full document through the store. Errors are returned to
// the caller unchanged in meaning; there is no internal retry.
func (a *Adapter) Save(ctx context.Context, doc Document) error {
	body, err := doc.Marshal()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode watermark document", err)
	}
	if err := a.store.Post(ctx, body); err != nil {
		return fmt.Errorf("writing watermark state: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
