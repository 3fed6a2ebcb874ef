package dedup

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/clariona/mediawatch/internal/normalize"
	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

// Outcome is ingest's result per §4.3.
type Outcome string

const (
	Inserted Outcome = "inserted"
	Updated  Outcome = "updated"
)

// Options bundles the tunables §4.3 names.
type Options struct {
	DupWindow          time.Duration // default 24h
	SimilarityThreshold float64      // default 0.85
	ShortTextLength     int          // below this, require exact equality; default 10
}

func DefaultOptions() Options {
	return Options{
		DupWindow:           24 * time.Hour,
		SimilarityThreshold: 0.85,
		ShortTextLength:     10,
	}
}

// Writer is the C3 concurrency-safe single entry point. keyLocks serializes
// lookup+insert per candidate key (§4.3's advisory-lock option b), since the
// backing store here uses plain inserts rather than native upsert-by-key
// statements for the mention row's primary identity.
type Writer struct {
	store store.MentionStore
	opts  Options

	keyLocks sync.Map // string -> *sync.Mutex
}

func New(s store.MentionStore, opts Options) *Writer {
	return &Writer{store: s, opts: opts}
}

func (w *Writer) lockFor(key string) func() {
	lockIface, _ := w.keyLocks.LoadOrStore(key, &sync.Mutex{})
	lock := lockIface.(*sync.Mutex)
	lock.Lock()
	return lock.Unlock
}

// Ingest runs the §4.3 algorithm: exact-key lookup, then near-duplicate
// scan, then insert. Safe for concurrent use; candidate keys are serialized
// via an in-process advisory lock.
func (w *Writer) Ingest(ctx context.Context, m *types.Mention) (Outcome, int64, error) {
	fp := normalize.Fingerprint(m)
	m.Fingerprint = hex.EncodeToString(fp[:])

	lookupKey := store.MentionLookupKey{Platform: m.Platform, SourceID: m.SourceID, URL: m.URL}
	if lookupKey.SourceID == "" && lookupKey.URL == "" {
		lookupKey.Fingerprint = m.Fingerprint
	}

	lockKey := lookupKey.Platform + "|" + lookupKey.SourceID + "|" + lookupKey.URL + "|" + lookupKey.Fingerprint
	unlock := w.lockFor(lockKey)
	defer unlock()

	existing, err := w.store.FindByKey(ctx, lookupKey)
	if err == nil {
		if err := w.mergeEngagement(ctx, existing, m); err != nil {
			return "", 0, err
		}
		return Updated, existing.EntryID, nil
	}

	near, err := w.findNearDuplicate(ctx, m)
	if err != nil {
		return "", 0, err
	}
	if near != nil {
		if err := w.mergeEngagement(ctx, near, m); err != nil {
			return "", 0, err
		}
		return Updated, near.EntryID, nil
	}

	id, err := w.store.Insert(ctx, m)
	if err != nil {
		return "", 0, fmt.Errorf("dedup: insert: %w", err)
	}
	return Inserted, id, nil
}

func (w *Writer) mergeEngagement(ctx context.Context, existing, incoming *types.Mention) error {
	return w.store.UpdateEngagement(ctx, existing.EntryID, store.EngagementUpdate{
		Likes:           incoming.Likes,
		Shares:          incoming.Shares,
		Comments:        incoming.Comments,
		DirectReach:     incoming.DirectReach,
		CumulativeReach: incoming.CumulativeReach,
	})
}

// findNearDuplicate scans same-platform rows collected within DupWindow,
// returning the first candidate whose normalized text clears the
// similarity threshold (or matches exactly, for short texts).
func (w *Writer) findNearDuplicate(ctx context.Context, m *types.Mention) (*types.Mention, error) {
	since := m.CollectedAt.Add(-w.opts.DupWindow)
	candidates, err := w.store.FindNearDuplicates(ctx, m.Platform, since)
	if err != nil {
		return nil, fmt.Errorf("dedup: near-duplicate scan: %w", err)
	}

	incomingText := normalize.NormalizeText(m.Text)
	for _, c := range candidates {
		candidateText := normalize.NormalizeText(c.Text)
		if isDuplicate(incomingText, candidateText, w.opts) {
			return c, nil
		}
	}
	return nil, nil
}

func isDuplicate(a, b string, opts Options) bool {
	if len(a) < opts.ShortTextLength || len(b) < opts.ShortTextLength {
		return a == b
	}
	return Ratio(a, b) >= opts.SimilarityThreshold
}
