// Package recordstore implements a generic record collection with integer
// ids and a recycle bin.
//
// Records live in exactly one of two ordered sequences: active and trash.
// SoftDelete moves a record to the end of the trash, Restore moves it back to
// the end of the active sequence, and Purge removes it for good. Every
// mutation writes the full snapshot of both sequences to a kv.Store and then
// publishes a payload-less notification on the sync bus.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hrdesk/hrdesk/internal/apperr"
	"github.com/hrdesk/hrdesk/internal/kv"
	"github.com/hrdesk/hrdesk/internal/syncbus"
	"golang.org/x/text/cases"
)

// IDPolicy controls which records are considered when allocating a new id.
type IDPolicy int

const (
	// IDPolicyActiveAndTrash allocates max(id over active and trash)+1, so a
	// new record never shares an id with a trashed one.
	IDPolicyActiveAndTrash IDPolicy = iota

	// IDPolicyActiveOnly allocates max(id over active)+1. A record created
	// after a delete can reuse a trashed id; Restore then reports ErrDuplicateID.
	IDPolicyActiveOnly
)

// ParseIDPolicy maps the config spelling onto an IDPolicy.
func ParseIDPolicy(s string) (IDPolicy, error) {
	switch s {
	case "", "active_and_trash":
		return IDPolicyActiveAndTrash, nil
	case "active_only":
		return IDPolicyActiveOnly, nil
	default:
		return 0, fmt.Errorf("unknown id policy %q", s)
	}
}

// Schema tells the store how to reach the parts of T it manages.
type Schema[T any] struct {
	ID    func(T) int
	SetID func(*T, int)

	// Text returns the fields List matches its filter against.
	Text func(T) []string

	// Stamp hooks run on records moving between active and trash. Optional.
	OnSoftDelete func(rec *T, actor string)
	OnRestore    func(rec *T, actor string)
}

// Options configures a Store.
type Options[T any] struct {
	Schema    Schema[T]
	Storage   kv.Store
	ActiveKey string
	TrashKey  string

	// Bus receives a Publish after every committed mutation. Optional.
	Bus *syncbus.Bus

	IDPolicy IDPolicy

	// Seed returns the records written on first run, when nothing is
	// persisted under ActiveKey or TrashKey. Zero ids are allocated.
	Seed func() []T

	Logger *slog.Logger
}

// Store is safe for concurrent use. Mutations are serialized; listeners are
// notified after the store lock is released so they can read it back.
type Store[T any] struct {
	mu     sync.RWMutex
	opts   Options[T]
	log    *slog.Logger
	active []T
	trash  []T
}

// New validates opts and returns an empty store. Call Load before use.
func New[T any](opts Options[T]) (*Store[T], error) {
	if opts.Schema.ID == nil || opts.Schema.SetID == nil {
		return nil, errors.New("recordstore: schema must define ID and SetID")
	}
	if opts.Schema.Text == nil {
		opts.Schema.Text = func(T) []string { return nil }
	}
	if opts.Storage == nil {
		return nil, errors.New("recordstore: storage is required")
	}
	if opts.ActiveKey == "" || opts.TrashKey == "" || opts.ActiveKey == opts.TrashKey {
		return nil, errors.New("recordstore: distinct active and trash keys are required")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Store[T]{
		opts: opts,
		log:  log.With("store", opts.ActiveKey),
	}, nil
}

// Load reads the persisted snapshot. When neither key has ever been written
// the seed records are applied and persisted.
func (s *Store[T]) Load(ctx context.Context) error {
	active, activeFound, err := s.read(ctx, s.opts.ActiveKey)
	if err != nil {
		return err
	}
	trash, trashFound, err := s.read(ctx, s.opts.TrashKey)
	if err != nil {
		return err
	}

	if !activeFound && !trashFound {
		return s.Reset(ctx)
	}

	s.mu.Lock()
	s.active = active
	s.trash = trash
	s.mu.Unlock()

	s.log.Info("Loaded records", "active", len(active), "trash", len(trash))
	return nil
}

// Reset discards all records, applies the seed and persists the result.
func (s *Store[T]) Reset(ctx context.Context) error {
	s.mu.Lock()

	var seeded []T
	if s.opts.Seed != nil {
		for _, rec := range s.opts.Seed() {
			if s.opts.Schema.ID(rec) == 0 {
				s.opts.Schema.SetID(&rec, maxID(s.opts.Schema.ID, seeded)+1)
			}
			seeded = append(seeded, rec)
		}
	}

	if err := s.commit(ctx, seeded, nil); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.log.Info("Reset records", "seeded", len(seeded))
	s.publish()
	return nil
}

// Create assigns an id to rec, appends it to the active sequence and returns it.
func (s *Store[T]) Create(ctx context.Context, rec T) (T, error) {
	s.mu.Lock()

	s.opts.Schema.SetID(&rec, s.nextIDLocked())
	active := append(clone(s.active), rec)

	if err := s.commit(ctx, active, s.trash); err != nil {
		s.mu.Unlock()
		var zero T
		return zero, err
	}
	s.mu.Unlock()

	s.log.Debug("Record created", "id", s.opts.Schema.ID(rec))
	s.publish()
	return rec, nil
}

// Update applies fn to a copy of the active record with the given id and
// stores the result in place. An error from fn aborts the update.
func (s *Store[T]) Update(ctx context.Context, id int, fn func(*T) error) (T, error) {
	var zero T
	s.mu.Lock()

	idx := s.indexOf(s.active, id)
	if idx < 0 {
		s.mu.Unlock()
		return zero, fmt.Errorf("record %d: %w", id, apperr.ErrNotFound)
	}

	rec := s.active[idx]
	if err := fn(&rec); err != nil {
		s.mu.Unlock()
		return zero, err
	}
	s.opts.Schema.SetID(&rec, id)

	active := clone(s.active)
	active[idx] = rec

	if err := s.commit(ctx, active, s.trash); err != nil {
		s.mu.Unlock()
		return zero, err
	}
	s.mu.Unlock()

	s.log.Debug("Record updated", "id", id)
	s.publish()
	return rec, nil
}

// SoftDelete moves an active record to the end of the trash.
func (s *Store[T]) SoftDelete(ctx context.Context, id int, actor string) (T, error) {
	var zero T
	s.mu.Lock()

	idx := s.indexOf(s.active, id)
	if idx < 0 {
		s.mu.Unlock()
		return zero, fmt.Errorf("record %d: %w", id, apperr.ErrNotFound)
	}

	rec := s.active[idx]
	if s.opts.Schema.OnSoftDelete != nil {
		s.opts.Schema.OnSoftDelete(&rec, actor)
	}

	active := remove(s.active, idx)
	trash := append(clone(s.trash), rec)

	if err := s.commit(ctx, active, trash); err != nil {
		s.mu.Unlock()
		return zero, err
	}
	s.mu.Unlock()

	s.log.Debug("Record moved to trash", "id", id, "actor", actor)
	s.publish()
	return rec, nil
}

// Restore moves a trashed record to the end of the active sequence.
func (s *Store[T]) Restore(ctx context.Context, id int, actor string) (T, error) {
	var zero T
	s.mu.Lock()

	idx := s.indexOf(s.trash, id)
	if idx < 0 {
		s.mu.Unlock()
		return zero, fmt.Errorf("trashed record %d: %w", id, apperr.ErrNotFound)
	}
	if s.indexOf(s.active, id) >= 0 {
		s.mu.Unlock()
		return zero, fmt.Errorf("restoring record %d: %w", id, apperr.ErrDuplicateID)
	}

	rec := s.trash[idx]
	if s.opts.Schema.OnRestore != nil {
		s.opts.Schema.OnRestore(&rec, actor)
	}

	trash := remove(s.trash, idx)
	active := append(clone(s.active), rec)

	if err := s.commit(ctx, active, trash); err != nil {
		s.mu.Unlock()
		return zero, err
	}
	s.mu.Unlock()

	s.log.Debug("Record restored", "id", id, "actor", actor)
	s.publish()
	return rec, nil
}

// Purge permanently removes a record from the trash. Purging an id that is
// not in the trash does nothing.
func (s *Store[T]) Purge(ctx context.Context, id int) error {
	s.mu.Lock()

	idx := s.indexOf(s.trash, id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	if err := s.commit(ctx, s.active, remove(s.trash, idx)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.log.Debug("Record purged", "id", id)
	s.publish()
	return nil
}

// List returns the active records whose text fields contain filter,
// ignoring case, in insertion order. An empty filter matches everything.
func (s *Store[T]) List(filter string) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter = strings.TrimSpace(filter)
	if filter == "" {
		return clone(s.active)
	}

	fold := cases.Fold()
	needle := fold.String(filter)

	out := make([]T, 0, len(s.active))
	for _, rec := range s.active {
		for _, field := range s.opts.Schema.Text(rec) {
			if strings.Contains(fold.String(field), needle) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// Trash returns the trashed records in the order they were deleted.
func (s *Store[T]) Trash() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.trash)
}

// Get returns the active record with the given id.
func (s *Store[T]) Get(id int) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOf(s.active, id); idx >= 0 {
		return s.active[idx], nil
	}
	var zero T
	return zero, fmt.Errorf("record %d: %w", id, apperr.ErrNotFound)
}

// Lookup finds a record in either sequence. inTrash reports where it was found.
func (s *Store[T]) Lookup(id int) (rec T, inTrash bool, found bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOf(s.active, id); idx >= 0 {
		return s.active[idx], false, true
	}
	if idx := s.indexOf(s.trash, id); idx >= 0 {
		return s.trash[idx], true, true
	}
	return rec, false, false
}

// InTrash reports whether the trash holds id, even when an active record
// shares it.
func (s *Store[T]) InTrash(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(s.trash, id) >= 0
}

// NextID reports the id the next Create will assign.
func (s *Store[T]) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextIDLocked()
}

func (s *Store[T]) nextIDLocked() int {
	next := maxID(s.opts.Schema.ID, s.active)
	if s.opts.IDPolicy == IDPolicyActiveAndTrash {
		next = max(next, maxID(s.opts.Schema.ID, s.trash))
	}
	return next + 1
}

// commit persists both sequences and, only when that succeeds, makes them
// the current state. Callers hold s.mu.
func (s *Store[T]) commit(ctx context.Context, active, trash []T) error {
	if active == nil {
		active = []T{}
	}
	if trash == nil {
		trash = []T{}
	}

	activeJSON, err := json.Marshal(active)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.opts.ActiveKey, err)
	}
	trashJSON, err := json.Marshal(trash)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.opts.TrashKey, err)
	}

	err = s.opts.Storage.SetMulti(ctx, []kv.Entry{
		{Key: s.opts.ActiveKey, Value: activeJSON},
		{Key: s.opts.TrashKey, Value: trashJSON},
	})
	if err != nil {
		s.log.Error("Failed to persist records", "error", err)
		return fmt.Errorf("persisting records: %w", err)
	}

	s.active = active
	s.trash = trash
	return nil
}

func (s *Store[T]) publish() {
	if s.opts.Bus != nil {
		s.opts.Bus.Publish()
	}
}

func (s *Store[T]) read(ctx context.Context, key string) ([]T, bool, error) {
	data, err := s.opts.Storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}

	var recs []T
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return recs, true, nil
}

func (s *Store[T]) indexOf(recs []T, id int) int {
	for i, rec := range recs {
		if s.opts.Schema.ID(rec) == id {
			return i
		}
	}
	return -1
}

func maxID[T any](id func(T) int, recs []T) int {
	m := 0
	for _, rec := range recs {
		m = max(m, id(rec))
	}
	return m
}

func clone[T any](recs []T) []T {
	out := make([]T, len(recs))
	copy(out, recs)
	return out
}

func remove[T any](recs []T, idx int) []T {
	out := make([]T, 0, len(recs)-1)
	out = append(out, recs[:idx]...)
	return append(out, recs[idx+1:]...)
}
