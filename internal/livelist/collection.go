// Package livelist keeps an in-memory, family-scoped list consistent with
// the server while two channels race to update it: the acknowledgement of the
// client's own writes (Apply) and the realtime change feed (Merge). Both are
// keyed by row id, so applying the same change twice, or in either order,
// leaves one copy.
package livelist

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

var (
	// ErrClosed is returned by operations on a closed collection.
	ErrClosed = errors.New("collection closed")
	// ErrNotFound is returned when an update or delete names an id that is
	// not in the collection.
	ErrNotFound = errors.New("entry not in collection")
)

type Config[T any] struct {
	// Key returns the row id.
	Key func(T) string
	// Less orders the collection. When nil, new entries are prepended.
	Less func(a, b T) bool
	// Fetch loads the full collection from the server.
	Fetch func(ctx context.Context) ([]T, error)
	// OnChange, if set, receives a snapshot after every visible change.
	OnChange func(items []T)
	// Matches, if set, reports whether a realtime row is the server copy of a
	// placeholder still on screen. A matching insert event replaces the
	// placeholder at once instead of waiting for the write to return.
	Matches func(placeholder, row T) bool
	Logger  *slog.Logger
}

type state int

const (
	stateNew state = iota
	stateOpen
	stateClosed
)

type confirmedEntry[T any] struct {
	writes  int
	value   T
	present bool
	// at is the seq the value was learned at.
	at uint64
	// shown is true while the visible entry is value.
	shown bool
}

type Collection[T any] struct {
	cfg    Config[T]
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state state
	items []T
	// seq increases on every change; touched records the seq of the last
	// change per key so an in-flight write can tell whether anything else
	// changed its entry meanwhile.
	seq     uint64
	touched map[string]uint64
	// confirmed holds, per key with unresolved updates or deletes, the last
	// state the server vouched for. A failed write reverts to it, never to
	// another write's optimistic value.
	confirmed map[string]*confirmedEntry[T]
	// placeholders are the inserts on screen whose write is in flight.
	placeholders map[string]T
	// Events merged while a fetch is in flight are replayed on top of its
	// result.
	fetching int
	replay   []Event[T]

	notifyMu  sync.Mutex
	version   uint64
	delivered uint64
}

func New[T any](cfg Config[T]) *Collection[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Collection[T]{
		cfg:          cfg,
		logger:       logger.With("component", "livelist"),
		ctx:          ctx,
		cancel:       cancel,
		touched:      make(map[string]uint64),
		confirmed:    make(map[string]*confirmedEntry[T]),
		placeholders: make(map[string]T),
	}
}

// Open loads the collection and starts accepting events.
func (c *Collection[T]) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = stateOpen
	c.mu.Unlock()

	return c.Refetch(ctx)
}

// Close tears the collection down. In-flight fetches are cancelled, and late
// fetch results, write acknowledgements and events are discarded.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return
	}
	c.state = stateClosed
	c.items = nil
	c.replay = nil
	c.cancel()
}

// Refetch replaces the collection with a fresh server snapshot. The realtime
// feed does not replay events across reconnects, so a reconnect must call
// this.
func (c *Collection[T]) Refetch(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.fetching++
	c.mu.Unlock()

	fctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	items, err := c.cfg.Fetch(fctx)
	stop()
	cancel()

	c.mu.Lock()
	c.fetching--
	if c.state == stateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	replay := c.replay
	if c.fetching == 0 {
		c.replay = nil
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.items = slices.Clone(items)
	c.sortLocked()
	c.seq++
	for key, cf := range c.confirmed {
		var zero T
		cf.value, cf.present = zero, false
		if i := c.indexLocked(key); i >= 0 {
			cf.value, cf.present = c.items[i], true
		}
		cf.at, cf.shown = c.seq, true
	}
	for _, ev := range replay {
		c.mergeLocked(ev)
	}
	snap, v := c.changedLocked()
	c.mu.Unlock()

	c.deliver(snap, v)
	return nil
}

// Items returns a snapshot of the collection in sort order.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Apply performs m optimistically: the local change is visible before the
// write returns. On success the server row replaces the local entry; on
// failure the entry is restored to the last state the server confirmed for
// it. Either outcome is skipped when another change to the same entry landed
// while the write was in flight, since that change is newer. A newer local
// write that fails does not leave an older write's result hidden: once the
// entry is back on its confirmed state, a later acknowledgement shows.
func (c *Collection[T]) Apply(ctx context.Context, m Mutation[T]) (T, error) {
	switch m.kind {
	case mutUpdate:
		return c.applyUpdate(ctx, m)
	case mutDelete:
		return c.applyDelete(ctx, m)
	default:
		return c.applyInsert(ctx, m)
	}
}

func (c *Collection[T]) applyInsert(ctx context.Context, m Mutation[T]) (T, error) {
	var zero T

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	var phKey string
	var snap []T
	var v uint64
	if m.placeholder != nil {
		phKey = c.cfg.Key(*m.placeholder)
		c.upsertLocked(*m.placeholder)
		c.placeholders[phKey] = *m.placeholder
		c.touch(phKey)
		snap, v = c.changedLocked()
	}
	mark := c.seq
	c.mu.Unlock()
	if m.placeholder != nil {
		c.deliver(snap, v)
	}

	row, err := m.create(ctx)

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return row, err
	}
	changed := false
	if phKey != "" {
		delete(c.placeholders, phKey)
		if c.touched[phKey] == mark {
			changed = c.removeLocked(phKey)
		}
	}
	if err == nil {
		key := c.cfg.Key(row)
		if c.touched[key] <= mark {
			c.upsertLocked(row)
			c.touch(key)
			changed = true
		}
	}
	if changed {
		snap, v = c.changedLocked()
	}
	c.mu.Unlock()
	if changed {
		c.deliver(snap, v)
	}

	if err != nil {
		return zero, err
	}
	return row, nil
}

func (c *Collection[T]) applyUpdate(ctx context.Context, m Mutation[T]) (T, error) {
	var zero T

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	i := c.indexLocked(m.id)
	if i < 0 {
		c.mu.Unlock()
		return zero, ErrNotFound
	}
	cf := c.beginLocked(m.id, c.items[i])
	local := m.change(c.items[i])
	c.items[i] = local
	c.sortLocked()
	mark := c.touch(m.id)
	snap, v := c.changedLocked()
	c.mu.Unlock()
	c.deliver(snap, v)

	row, err := m.update(ctx, local)

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return row, err
	}
	var changed bool
	if err == nil {
		changed = c.ackLocked(m.id, cf, mark, &row)
	} else {
		changed = c.revertLocked(m.id, cf, mark)
	}
	c.endLocked(m.id, cf)
	if changed {
		snap, v = c.changedLocked()
	}
	c.mu.Unlock()
	if changed {
		c.deliver(snap, v)
	}

	if err != nil {
		return zero, err
	}
	return row, nil
}

func (c *Collection[T]) applyDelete(ctx context.Context, m Mutation[T]) (T, error) {
	var zero T

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	i := c.indexLocked(m.id)
	if i < 0 {
		c.mu.Unlock()
		return zero, ErrNotFound
	}
	before := c.items[i]
	cf := c.beginLocked(m.id, before)
	c.removeLocked(m.id)
	mark := c.touch(m.id)
	snap, v := c.changedLocked()
	c.mu.Unlock()
	c.deliver(snap, v)

	err := m.remove(ctx)

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		if err != nil {
			return zero, err
		}
		return before, nil
	}
	var changed bool
	if err == nil {
		changed = c.ackLocked(m.id, cf, mark, nil)
	} else {
		changed = c.revertLocked(m.id, cf, mark)
	}
	c.endLocked(m.id, cf)
	if changed {
		snap, v = c.changedLocked()
	}
	c.mu.Unlock()
	if changed {
		c.deliver(snap, v)
	}

	if err != nil {
		return zero, err
	}
	return before, nil
}

// beginLocked registers a write to key. current is the visible entry; it is
// only taken as confirmed when no other write to key is unresolved.
func (c *Collection[T]) beginLocked(key string, current T) *confirmedEntry[T] {
	cf := c.confirmed[key]
	if cf == nil {
		cf = &confirmedEntry[T]{value: current, present: true, at: c.seq}
		c.confirmed[key] = cf
	}
	cf.writes++
	cf.shown = false
	return cf
}

func (c *Collection[T]) endLocked(key string, cf *confirmedEntry[T]) {
	cf.writes--
	if cf.writes == 0 && c.confirmed[key] == cf {
		delete(c.confirmed, key)
	}
}

// ackLocked records a successful write to key started at mark. row is the
// server row, or nil for a delete. The result becomes the confirmed state
// unless the server has said something newer, and is shown when nothing
// changed the entry since mark or the entry is back on its confirmed state.
func (c *Collection[T]) ackLocked(key string, cf *confirmedEntry[T], mark uint64, row *T) bool {
	latest := c.touched[key] == mark
	if !latest && cf.at > mark {
		return false
	}
	var zero T
	cf.value, cf.present = zero, false
	if row != nil {
		cf.value, cf.present = *row, true
	}
	if !latest && !cf.shown {
		cf.at = c.seq
		return false
	}
	changed := c.showLocked(key, cf)
	cf.at, cf.shown = c.touch(key), true
	return changed
}

// revertLocked puts key back on its confirmed state after a failed write
// started at mark, unless something changed the entry since.
func (c *Collection[T]) revertLocked(key string, cf *confirmedEntry[T], mark uint64) bool {
	if c.touched[key] != mark {
		return false
	}
	changed := c.showLocked(key, cf)
	c.touch(key)
	cf.shown = true
	return changed
}

func (c *Collection[T]) showLocked(key string, cf *confirmedEntry[T]) bool {
	if cf.present {
		c.upsertLocked(cf.value)
		return true
	}
	return c.removeLocked(key)
}

// Merge folds one realtime event into the collection. Duplicate inserts and
// deletes of absent ids are no-ops; updates overwrite the whole entry, and an
// update for an unknown id is treated as an insert.
func (c *Collection[T]) Merge(ev Event[T]) {
	c.mu.Lock()
	if c.state != stateOpen {
		c.mu.Unlock()
		return
	}
	if c.fetching > 0 {
		c.replay = append(c.replay, ev)
	}
	if !c.mergeLocked(ev) {
		c.mu.Unlock()
		return
	}
	snap, v := c.changedLocked()
	c.mu.Unlock()
	c.deliver(snap, v)
}

// MergeWire decodes a change in its wire form and merges it. Undecodable
// events are logged and dropped.
func (c *Collection[T]) MergeWire(kind string, record []byte) {
	ev, err := DecodeEvent[T](kind, record)
	if err != nil {
		c.logger.Warn("dropping realtime event", "error", err)
		return
	}
	c.Merge(ev)
}

func (c *Collection[T]) mergeLocked(ev Event[T]) bool {
	key := c.cfg.Key(ev.Record)
	at := c.touch(key)
	if cf := c.confirmed[key]; cf != nil {
		var zero T
		cf.value, cf.present = zero, false
		if ev.Kind != KindDelete {
			cf.value, cf.present = ev.Record, true
		}
		cf.at, cf.shown = at, true
	}

	i := c.indexLocked(key)
	switch ev.Kind {
	case KindInsert:
		if i >= 0 {
			c.logger.Debug("duplicate insert discarded", "id", key)
			return false
		}
		c.dropPlaceholderLocked(ev.Record)
		c.insertLocked(ev.Record)
	case KindUpdate:
		if i < 0 {
			c.dropPlaceholderLocked(ev.Record)
			c.insertLocked(ev.Record)
			return true
		}
		c.items[i] = ev.Record
		c.sortLocked()
	case KindDelete:
		if i < 0 {
			c.logger.Debug("delete of absent entry ignored", "id", key)
			return false
		}
		c.items = slices.Delete(c.items, i, i+1)
	default:
		return false
	}
	return true
}

// dropPlaceholderLocked removes the first on-screen placeholder that row is
// the server copy of.
func (c *Collection[T]) dropPlaceholderLocked(row T) {
	if c.cfg.Matches == nil {
		return
	}
	for key, ph := range c.placeholders {
		if c.cfg.Matches(ph, row) && c.removeLocked(key) {
			delete(c.placeholders, key)
			c.touch(key)
			return
		}
	}
}

func (c *Collection[T]) touch(key string) uint64 {
	c.seq++
	c.touched[key] = c.seq
	return c.seq
}

func (c *Collection[T]) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(it T) bool { return c.cfg.Key(it) == id })
}

func (c *Collection[T]) insertLocked(item T) {
	if c.cfg.Less == nil {
		c.items = slices.Insert(c.items, 0, item)
		return
	}
	c.items = append(c.items, item)
	c.sortLocked()
}

func (c *Collection[T]) upsertLocked(item T) {
	if i := c.indexLocked(c.cfg.Key(item)); i >= 0 {
		c.items[i] = item
		c.sortLocked()
		return
	}
	c.insertLocked(item)
}

func (c *Collection[T]) removeLocked(id string) bool {
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

func (c *Collection[T]) sortLocked() {
	if c.cfg.Less == nil {
		return
	}
	slices.SortStableFunc(c.items, func(a, b T) int {
		switch {
		case c.cfg.Less(a, b):
			return -1
		case c.cfg.Less(b, a):
			return 1
		default:
			return 0
		}
	})
}

func (c *Collection[T]) changedLocked() ([]T, uint64) {
	c.version++
	return slices.Clone(c.items), c.version
}

// deliver hands a snapshot to OnChange, skipping snapshots older than one
// already delivered.
func (c *Collection[T]) deliver(items []T, v uint64) {
	if c.cfg.OnChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if v <= c.delivered {
		return
	}
	c.delivered = v
	c.cfg.OnChange(items)
}
