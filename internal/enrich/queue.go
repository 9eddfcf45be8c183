package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/extract"
	"github.com/cardmap/cardmap-cli/internal/model"
)

// DefaultDelay is the pause between entries that reach the resolution
// step, sized to stay inside the public geocoder's usage policy.
const DefaultDelay = 1100 * time.Millisecond

// Items is the in-memory item view the queue reads and updates.
type Items interface {
	Item(id string) (model.Item, bool)
	SetCoordinates(id string, coords model.Coordinates)
}

// Persister writes resolved coordinates back to the board so they
// survive the next reload.
type Persister interface {
	SaveCoordinates(ctx context.Context, itemID string, coords model.Coordinates) error
}

// Recorder keeps the per-entry audit trail.
type Recorder interface {
	RecordResolution(ctx context.Context, rec model.ResolutionRecord) error
}

// Stats counts queue outcomes since construction.
type Stats struct {
	Enqueued int `json:"enqueued"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Pending  int `json:"pending"`
}

// Queue is a FIFO backlog of item IDs awaiting coordinate resolution.
// An ID can be queued at most once while it waits; dequeued entries are
// never retried automatically. One Run drains the backlog at a time,
// pacing entries that reach the resolution step and skipping the pause
// for entries that produce nothing to resolve.
type Queue struct {
	items    Items
	resolver *Resolver

	boardID    string
	delay      time.Duration
	persister  Persister
	recorder   Recorder
	onResolved func()

	mu      sync.Mutex
	backlog []string
	members map[string]bool
	state   model.RunState
	stats   Stats
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithDelay overrides the pause between resolution-step entries. Zero
// or negative disables pacing.
func WithDelay(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.delay = d
	}
}

// WithBoardID stamps audit records with the board they belong to.
func WithBoardID(id string) QueueOption {
	return func(q *Queue) {
		q.boardID = id
	}
}

// WithPersister makes resolved coordinates durable on the board.
func WithPersister(p Persister) QueueOption {
	return func(q *Queue) {
		q.persister = p
	}
}

// WithRecorder keeps an audit record per dequeued entry.
func WithRecorder(r Recorder) QueueOption {
	return func(q *Queue) {
		q.recorder = r
	}
}

// WithOnResolved registers a hook run after each entry that gains
// coordinates, typically a marker resync.
func WithOnResolved(fn func()) QueueOption {
	return func(q *Queue) {
		q.onResolved = fn
	}
}

// NewQueue creates an idle queue over the given item view and resolver.
func NewQueue(items Items, resolver *Resolver, opts ...QueueOption) *Queue {
	q := &Queue{
		items:    items,
		resolver: resolver,
		delay:    DefaultDelay,
		members:  make(map[string]bool),
		state:    model.RunStateIdle,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends one item ID unless it is already waiting. It reports
// whether the ID was added.
func (q *Queue) Enqueue(id string) bool {
	if id == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.push(id)
}

// EnqueueAll appends every item that still needs coordinates, in the
// given order, and returns how many were added.
func (q *Queue) EnqueueAll(items []model.Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	added := 0
	for _, it := range items {
		if !it.NeedsCoordinates() {
			continue
		}
		if q.push(it.ID) {
			added++
		}
	}
	return added
}

// push appends under q.mu.
func (q *Queue) push(id string) bool {
	if q.members[id] {
		return false
	}
	q.members[id] = true
	q.backlog = append(q.backlog, id)
	q.stats.Enqueued++
	return true
}

// Len returns the number of waiting entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// State returns the current lifecycle state.
func (q *Queue) State() model.RunState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Stats returns a snapshot of the outcome counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.backlog)
	return s
}

// Run drains the backlog until it is empty or ctx is cancelled. If a
// run is already active the call is a no-op; the active run drains
// whatever was enqueued meanwhile. Per-entry failures are recorded and
// skipped, they never abort the run.
func (q *Queue) Run(ctx context.Context) error {
	if !q.begin() {
		zap.L().Debug("enrichment run already active")
		return nil
	}
	defer q.setIdle()

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "enrichment interrupted")
		}
		id, ok := q.dequeue()
		if !ok {
			return nil
		}

		log := zap.L().With(zap.String("item_id", id))
		attempted, err := q.processOne(ctx, id, log)
		if err != nil {
			return eris.Wrap(err, "enrichment interrupted")
		}

		// Pace only entries that reached the resolution step, and only
		// while more work is waiting.
		if attempted && q.Len() > 0 {
			if err := sleepCtx(ctx, q.delay); err != nil {
				return eris.Wrap(err, "enrichment interrupted")
			}
		}
	}
}

// processOne handles a single dequeued ID. It reports whether the entry
// reached the resolution step, and returns an error only for
// cancellation.
func (q *Queue) processOne(ctx context.Context, id string, log *zap.Logger) (bool, error) {
	item, ok := q.items.Item(id)
	if !ok {
		log.Debug("item no longer on board, skipping")
		q.skip(ctx, id, "")
		return false, nil
	}
	if item.Coords != nil {
		log.Debug("item already has coordinates, skipping")
		q.skip(ctx, id, "")
		return false, nil
	}
	if strings.TrimSpace(item.Desc) == "" {
		log.Debug("item has an empty description, skipping")
		q.skip(ctx, id, "")
		return false, nil
	}

	candidate, ok := extract.Candidate(item.Desc)
	if !ok {
		log.Debug("description yields no address candidate, skipping")
		q.skip(ctx, id, "")
		return false, nil
	}

	coords, err := q.resolver.Resolve(ctx, candidate)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return true, err
	case err != nil:
		log.Warn("resolution failed",
			zap.String("candidate", candidate),
			zap.Error(err))
		q.fail(ctx, id, candidate, nil, err.Error())
		return true, nil
	case coords == nil:
		log.Debug("no location found", zap.String("candidate", candidate))
		q.fail(ctx, id, candidate, nil, "no matching location")
		return true, nil
	}

	q.items.SetCoordinates(id, *coords)

	if q.persister != nil {
		if perr := q.persister.SaveCoordinates(ctx, id, *coords); perr != nil {
			// The coordinates stay usable in memory; only durability
			// was lost, so the entry counts as failed.
			log.Warn("persisting coordinates failed, keeping in memory",
				zap.Error(perr))
			q.fail(ctx, id, candidate, coords, perr.Error())
			q.notifyResolved()
			return true, nil
		}
	}

	log.Info("resolved coordinates",
		zap.String("candidate", candidate),
		zap.Float64("lat", coords.Lat),
		zap.Float64("lng", coords.Lng))
	q.bump(func(s *Stats) { s.Resolved++ })
	q.record(ctx, model.ResolutionRecord{
		BoardID:   q.boardID,
		ItemID:    id,
		Candidate: candidate,
		Status:    model.ResolutionResolved,
		Coords:    coords,
		CreatedAt: time.Now().UTC(),
	})
	q.notifyResolved()
	return true, nil
}

func (q *Queue) skip(ctx context.Context, id, candidate string) {
	q.bump(func(s *Stats) { s.Skipped++ })
	q.record(ctx, model.ResolutionRecord{
		BoardID:   q.boardID,
		ItemID:    id,
		Candidate: candidate,
		Status:    model.ResolutionSkipped,
		CreatedAt: time.Now().UTC(),
	})
}

func (q *Queue) fail(ctx context.Context, id, candidate string, coords *model.Coordinates, msg string) {
	q.bump(func(s *Stats) { s.Failed++ })
	q.record(ctx, model.ResolutionRecord{
		BoardID:   q.boardID,
		ItemID:    id,
		Candidate: candidate,
		Status:    model.ResolutionFailed,
		Coords:    coords,
		Error:     msg,
		CreatedAt: time.Now().UTC(),
	})
}

func (q *Queue) record(ctx context.Context, rec model.ResolutionRecord) {
	if q.recorder == nil {
		return
	}
	if err := q.recorder.RecordResolution(ctx, rec); err != nil {
		zap.L().Warn("recording resolution failed",
			zap.String("item_id", rec.ItemID),
			zap.Error(err))
	}
}

func (q *Queue) notifyResolved() {
	if q.onResolved != nil {
		q.onResolved()
	}
}

func (q *Queue) bump(f func(*Stats)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	f(&q.stats)
}

func (q *Queue) begin() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == model.RunStateProcessing {
		return false
	}
	q.state = model.RunStateProcessing
	return true
}

func (q *Queue) setIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = model.RunStateIdle
}

func (q *Queue) dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.backlog) == 0 {
		return "", false
	}
	id := q.backlog[0]
	q.backlog = q.backlog[1:]
	delete(q.members, id)
	return id, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
