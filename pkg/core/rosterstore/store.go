package rosterstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// DefaultBatchDelay is how long edits are collected before they are written
const DefaultBatchDelay = 500 * time.Millisecond

var (
	ErrFetchFailed    = errors.New("failed to fetch roster")
	ErrWriteFailed    = errors.New("failed to write roster edit")
	ErrNoRoster       = errors.New("no roster loaded")
	ErrPeriodMismatch = errors.New("edit targets a different month than the loaded roster")
	ErrUnknownMember  = errors.New("member not in roster")
	ErrDayOutOfRange  = errors.New("day out of range")
	ErrInvalidShift   = errors.New("invalid shift code")
	ErrClosed         = errors.New("roster store closed")
)

// DutyAPI is the duty collaborator the store reads from and writes to
type DutyAPI interface {
	GetDuty(ctx context.Context, query model.DutyQuery) (*model.Duty, error)
	UpdateDuty(ctx context.Context, update model.DutyUpdate) error
}

// Phase is the store's position in the Idle -> Batching -> Flushing cycle
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBatching
	PhaseFlushing
)

func (p Phase) String() string {
	switch p {
	case PhaseBatching:
		return "batching"
	case PhaseFlushing:
		return "flushing"
	default:
		return "idle"
	}
}

// Snapshot is a deep copy of the store state handed to readers
type Snapshot struct {
	Duty    model.Duty
	Loaded  bool
	Failed  bool
	Err     error
	// WriteErr is the result of the last flush that sent writes, nil once one succeeds
	WriteErr error
	Pending  int
	Phase    Phase
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock driving the batch timer
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithBatchDelay sets the debounce window
func WithBatchDelay(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

// Store is the single source of truth for the displayed roster and the only
// component that writes to the duty collaborator.
type Store struct {
	api    DutyAPI
	logger *zap.Logger
	clock  clock.Clock
	delay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	duty      model.Duty
	loaded    bool
	err       error
	writeErr  error
	fetchSeq  uint64
	open      *Batch        // window collecting edits
	waiting   []*Batch      // windows closed, waiting for the previous flush
	flushing  *Batch        // window being written
	lastFlush chan struct{} // closed when the most recently started flush has cleaned up
	subs      map[int]func(Snapshot)
	nextSub   int
	closed    bool
}

// New creates a store reading from and writing to api
func New(api DutyAPI, logger *zap.Logger, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:    api,
		logger: logger,
		clock:  clock.New(),
		delay:  DefaultBatchDelay,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch loads the requested month and replaces the roster wholesale.
// When several fetches overlap, only the most recently issued one is applied.
func (s *Store) Fetch(ctx context.Context, query model.DutyQuery) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	s.logger.Debug("Fetching roster",
		zap.Int("year", query.Year),
		zap.Int("month", query.Month),
		zap.Intp("history", query.History),
		zap.Uint64("seq", seq))

	duty, err := s.api.GetDuty(ctx, query)
	if err == nil && duty == nil {
		err = errors.New("empty duty response")
	}
	if err == nil {
		duty.SortRows()
		err = duty.Validate()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if seq != s.fetchSeq {
		s.mu.Unlock()
		s.logger.Debug("Discarding superseded roster response", zap.Uint64("seq", seq))
		return nil
	}

	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		fetchErr := s.err
		s.mu.Unlock()
		s.logger.Error("Roster fetch failed", zap.Error(err))
		s.notify()
		return fetchErr
	}

	s.duty = *duty
	s.loaded = true
	s.err = nil
	s.reapplyPendingLocked()
	s.mu.Unlock()

	s.logger.Debug("Roster replaced",
		zap.Int("year", duty.Year),
		zap.Int("month", duty.Month),
		zap.Int("rows", len(duty.Rows)),
		zap.Int("issues", len(duty.Issues)))
	s.notify()
	return nil
}

// RevertTo replaces the roster with the state recorded at history index idx.
// The server decides what that state is.
func (s *Store) RevertTo(ctx context.Context, idx int) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoRoster
	}
	query := model.DutyQuery{Year: s.duty.Year, Month: s.duty.Month, History: &idx}
	s.mu.Unlock()

	s.logger.Info("Reverting roster", zap.Int("history", idx))
	return s.Fetch(ctx, query)
}

// EditCell applies an edit to the in-memory roster immediately and queues it for the
// next flush. The returned Batch resolves when the window containing the edit has been
// written and reconciled. Edits where Before equals After are ignored.
func (s *Store) EditCell(edit model.CellEdit) (*Batch, error) {
	if edit.Before == edit.After {
		return resolvedBatch(), nil
	}
	if !edit.Before.Valid() || !edit.After.Valid() {
		return nil, fmt.Errorf("%w: %q -> %q", ErrInvalidShift, edit.Before, edit.After)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNoRoster
	}
	if edit.Year != 0 && (edit.Year != s.duty.Year || edit.Month != s.duty.Month) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d-%02d", ErrPeriodMismatch, edit.Year, edit.Month)
	}
	row := s.duty.Row(edit.MemberID)
	if row == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrUnknownMember, edit.MemberID)
	}
	if edit.DayIndex < 0 || edit.DayIndex >= len(row.Shifts) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrDayOutOfRange, edit.DayIndex+1)
	}

	name := edit.Name
	if name == "" {
		name = row.Name
	}
	row.Shifts[edit.DayIndex] = edit.After

	if s.open == nil {
		b := newBatch(s.duty.Year, s.duty.Month)
		b.timer = s.clock.AfterFunc(s.delay, func() { s.runFlush(b) })
		s.open = b
	}
	b := s.open
	b.edits = append(b.edits, model.PendingEdit{
		MemberID:  edit.MemberID,
		Name:      name,
		DayIndex:  edit.DayIndex,
		Before:    edit.Before,
		After:     edit.After,
		Timestamp: s.clock.Now(),
	})
	s.mu.Unlock()

	s.logger.Debug("Cell edited",
		zap.Int("member_id", edit.MemberID),
		zap.Int("day", edit.DayIndex+1),
		zap.String("before", string(edit.Before)),
		zap.String("after", string(edit.After)))
	s.notify()
	return b, nil
}

// Flush writes the open window now instead of waiting for its timer, and waits for any
// flush already in progress.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	b := s.open
	last := s.lastFlush
	s.mu.Unlock()

	if b == nil {
		if last == nil {
			return nil
		}
		select {
		case <-last:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.timer.Stop()
	go s.runFlush(b)
	return b.Wait(ctx)
}

// Close stops the batch timer and abandons any unflushed window. No state is
// mutated after Close returns.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	abandoned := append(s.waiting, s.open)
	s.open = nil
	s.waiting = nil
	s.subs = map[int]func(Snapshot){}
	s.mu.Unlock()

	s.cancel()
	for _, b := range abandoned {
		if b == nil {
			continue
		}
		if b.timer != nil {
			b.timer.Stop()
		}
		b.resolve(ErrClosed)
	}
}

// runFlush closes the window, waits for the previous flush to finish, then writes it
func (s *Store) runFlush(b *Batch) {
	s.mu.Lock()
	if s.closed || s.open != b {
		// closed, or already taken by an earlier trigger
		s.mu.Unlock()
		return
	}
	s.open = nil
	s.waiting = append(s.waiting, b)
	prev := s.lastFlush
	mine := make(chan struct{})
	s.lastFlush = mine
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	s.removeWaitingLocked(b)
	if s.closed {
		s.mu.Unlock()
		close(mine)
		b.resolve(ErrClosed)
		return
	}
	s.flushing = b
	s.mu.Unlock()
	s.notify()

	sent, err := s.flush(b)

	s.mu.Lock()
	s.flushing = nil
	if sent {
		s.writeErr = err
	}
	s.mu.Unlock()
	close(mine)
	b.resolve(err)
	s.notify()
}

// flush sends the coalesced window, then reconciles with (or rolls back to) server state.
// sent is false when the window coalesced to nothing.
func (s *Store) flush(b *Batch) (sent bool, err error) {
	writes := coalesce(b.edits)
	query := model.DutyQuery{Year: b.year, Month: b.month}

	s.logger.Debug("Flushing roster edits",
		zap.Int("queued", len(b.edits)),
		zap.Int("writes", len(writes)))

	if len(writes) == 0 {
		return false, nil
	}

	for _, w := range writes {
		update := model.DutyUpdate{Year: b.year, Month: b.month, History: w}
		if err := s.api.UpdateDuty(s.ctx, update); err != nil {
			writeErr := fmt.Errorf("%w: member %d day %d: %w", ErrWriteFailed, w.MemberID, w.ModifiedDay, err)
			s.logger.Warn("Roster write failed, rolling back",
				zap.Int("member_id", w.MemberID),
				zap.Int("day", w.ModifiedDay),
				zap.Error(err))

			if fetchErr := s.Fetch(s.ctx, query); fetchErr != nil {
				return true, errors.Join(writeErr, fetchErr)
			}
			return true, writeErr
		}
	}

	if err := s.Fetch(s.ctx, query); err != nil {
		return true, err
	}
	s.logger.Info("Roster edits saved", zap.Int("writes", len(writes)))
	return true, nil
}

// reapplyPendingLocked lays edits that have not started flushing over a freshly
// fetched roster so they stay visible until they are written.
func (s *Store) reapplyPendingLocked() {
	batches := append([]*Batch{}, s.waiting...)
	if s.open != nil {
		batches = append(batches, s.open)
	}
	for _, b := range batches {
		if b.year != s.duty.Year || b.month != s.duty.Month {
			continue
		}
		for _, e := range b.edits {
			if err := s.duty.SetShift(e.MemberID, e.DayIndex, e.After); err != nil {
				s.logger.Debug("Pending edit no longer applies", zap.Int("member_id", e.MemberID), zap.Error(err))
			}
		}
	}
}

func (s *Store) removeWaitingLocked(b *Batch) {
	for i, w := range s.waiting {
		if w == b {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	pending := 0
	for _, b := range s.waiting {
		pending += len(b.edits)
	}
	if s.open != nil {
		pending += len(s.open.edits)
	}
	return Snapshot{
		Duty:     s.duty.Clone(),
		Loaded:   s.loaded,
		Failed:   s.err != nil,
		Err:      s.err,
		WriteErr: s.writeErr,
		Pending:  pending,
		Phase:    s.phaseLocked(),
	}
}

// Phase returns where the store is in its edit cycle
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phaseLocked()
}

func (s *Store) phaseLocked() Phase {
	switch {
	case s.flushing != nil:
		return PhaseFlushing
	case s.open != nil || len(s.waiting) > 0:
		return PhaseBatching
	default:
		return PhaseIdle
	}
}

// Err returns the last fetch error, cleared by the next successful fetch
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
