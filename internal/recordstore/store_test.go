package recordstore

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/hrdesk/hrdesk/internal/apperr"
	"github.com/hrdesk/hrdesk/internal/kv"
	"github.com/hrdesk/hrdesk/internal/syncbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Actor  string `json:"actor"`
	Binned bool   `json:"binned"`
}

var noteSchema = Schema[note]{
	ID:    func(n note) int { return n.ID },
	SetID: func(n *note, id int) { n.ID = id },
	Text:  func(n note) []string { return []string{n.Title} },
	OnSoftDelete: func(n *note, actor string) {
		n.Actor = actor
		n.Binned = true
	},
	OnRestore: func(n *note, actor string) {
		n.Actor = actor
		n.Binned = false
	},
}

// failingKV accepts reads and rejects writes once armed.
type failingKV struct {
	kv.Store
	fail bool
}

func (f *failingKV) SetMulti(ctx context.Context, entries []kv.Entry) error {
	if f.fail {
		return errors.New("quota exceeded")
	}
	return f.Store.SetMulti(ctx, entries)
}

func newNoteStore(t *testing.T, storage kv.Store, bus *syncbus.Bus, policy IDPolicy) *Store[note] {
	t.Helper()
	s, err := New(Options[note]{
		Schema:    noteSchema,
		Storage:   storage,
		ActiveKey: "notes",
		TrashKey:  "deletedNotes",
		Bus:       bus,
		IDPolicy:  policy,
	})
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func ids(notes []note) []int {
	out := make([]int, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestNew_RequiresSchemaAndKeys(t *testing.T) {
	_, err := New(Options[note]{Storage: kv.NewMemoryStore(), ActiveKey: "a", TrashKey: "b"})
	assert.Error(t, err)

	_, err = New(Options[note]{Schema: noteSchema, Storage: kv.NewMemoryStore(), ActiveKey: "a", TrashKey: "a"})
	assert.Error(t, err)

	_, err = New(Options[note]{Schema: noteSchema, ActiveKey: "a", TrashKey: "b"})
	assert.Error(t, err)
}

func TestCreate_AssignsSequentialIDsAndListReturnsFieldsVerbatim(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)

	first, err := s.Create(ctx, note{Title: "QA Lead", Body: "desc"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)

	second, err := s.Create(ctx, note{Title: "Support", Body: "desc2"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	all := s.List("")
	require.Len(t, all, 2)
	assert.Equal(t, note{ID: 1, Title: "QA Lead", Body: "desc"}, all[0])
	assert.Equal(t, note{ID: 2, Title: "Support", Body: "desc2"}, all[1])
}

func TestSoftDeleteRestore_ReordersOnRestore(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)

	s.Create(ctx, note{Title: "QA Lead", Body: "desc"})
	s.Create(ctx, note{Title: "Support", Body: "desc2"})

	_, err := s.SoftDelete(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids(s.List("")))
	assert.Equal(t, []int{1}, ids(s.Trash()))

	_, err = s.Restore(ctx, 1, "bob")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ids(s.List("")))
	assert.Empty(t, s.Trash())
}

func TestSoftDeleteThenRestore_OnlyAuditFieldsChange(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)

	before, _ := s.Create(ctx, note{Title: "Payroll", Body: "runs payroll", Actor: "carol"})

	deleted, err := s.SoftDelete(ctx, before.ID, "dave")
	require.NoError(t, err)
	assert.True(t, deleted.Binned)
	assert.Equal(t, "dave", deleted.Actor)

	after, err := s.Restore(ctx, before.ID, "erin")
	require.NoError(t, err)

	after.Actor = before.Actor
	assert.Equal(t, before, after)
}

func TestMissingIDs_ReturnNotFound(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)

	_, err := s.Update(ctx, 9, func(*note) error { return nil })
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.SoftDelete(ctx, 9, "x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Restore(ctx, 9, "x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Get(9)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.NoError(t, s.Purge(ctx, 9))
}

func TestUpdate_KeepsPositionAndAbortsOnError(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)
	s.Create(ctx, note{Title: "a"})
	s.Create(ctx, note{Title: "b"})

	updated, err := s.Update(ctx, 1, func(n *note) error {
		n.Title = "renamed"
		n.ID = 42 // ids are owned by the store
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ID)
	assert.Equal(t, []int{1, 2}, ids(s.List("")))

	_, err = s.Update(ctx, 2, func(n *note) error {
		n.Title = "never stored"
		return apperr.Invalid("nope")
	})
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)

	got, _ := s.Get(2)
	assert.Equal(t, "b", got.Title)
}

func TestList_CaseInsensitiveSubstring(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)
	s.Create(ctx, note{Title: "Administrator"})
	s.Create(ctx, note{Title: "User"})

	got := s.List("admin")
	require.Len(t, got, 1)
	assert.Equal(t, "Administrator", got[0].Title)

	assert.Len(t, s.List("  USER "), 1)
	assert.Empty(t, s.List("nobody"))
}

func TestPurge_RemovesFromTrashOnly(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)
	s.Create(ctx, note{Title: "a"})
	s.Create(ctx, note{Title: "b"})
	s.SoftDelete(ctx, 1, "x")

	// purging an active id is a no-op
	require.NoError(t, s.Purge(ctx, 2))
	assert.Equal(t, []int{2}, ids(s.List("")))

	require.NoError(t, s.Purge(ctx, 1))
	assert.Empty(t, s.Trash())
	_, _, found := s.Lookup(1)
	assert.False(t, found)
}

func TestIDPolicy_ActiveAndTrashNeverReusesTrashedIDs(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)
	s.Create(ctx, note{Title: "a"})
	s.Create(ctx, note{Title: "b"})
	s.SoftDelete(ctx, 2, "x")

	created, err := s.Create(ctx, note{Title: "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, created.ID)

	_, err = s.Restore(ctx, 2, "x")
	assert.NoError(t, err)
}

func TestIDPolicy_ActiveOnlyReproducesCollisionAndRestoreRefuses(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveOnly)
	s.Create(ctx, note{Title: "a"})
	s.Create(ctx, note{Title: "b"})
	s.SoftDelete(ctx, 2, "x")

	created, err := s.Create(ctx, note{Title: "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, created.ID, "legacy allocation ignores the trash")

	_, err = s.Restore(ctx, 2, "x")
	assert.ErrorIs(t, err, apperr.ErrDuplicateID)
	assert.Equal(t, []int{2}, ids(s.Trash()))

	_, inTrash, _ := s.Lookup(2)
	assert.False(t, inTrash, "Lookup prefers the active record")
	assert.True(t, s.InTrash(2))

	require.NoError(t, s.Purge(ctx, 2))
	assert.Empty(t, s.Trash())
	assert.False(t, s.InTrash(2))
	assert.Equal(t, []int{1, 2}, ids(s.List("")))
}

func TestMutations_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStore()
	s := newNoteStore(t, storage, nil, IDPolicyActiveAndTrash)
	s.Create(ctx, note{Title: "a"})
	s.Create(ctx, note{Title: "b"})
	s.SoftDelete(ctx, 1, "x")

	reloaded := newNoteStore(t, storage, nil, IDPolicyActiveAndTrash)
	assert.Equal(t, []int{2}, ids(reloaded.List("")))
	assert.Equal(t, []int{1}, ids(reloaded.Trash()))
	assert.Equal(t, 3, reloaded.NextID())
}

func TestPersistFailure_LeavesStateUntouchedAndDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	storage := &failingKV{Store: kv.NewMemoryStore()}
	bus := syncbus.New()
	s := newNoteStore(t, storage, bus, IDPolicyActiveAndTrash)
	s.Create(ctx, note{Title: "a"})

	published := 0
	bus.Subscribe(func() { published++ })
	storage.fail = true

	_, err := s.Create(ctx, note{Title: "b"})
	assert.Error(t, err)
	_, err = s.SoftDelete(ctx, 1, "x")
	assert.Error(t, err)

	assert.Equal(t, []int{1}, ids(s.List("")))
	assert.Empty(t, s.Trash())
	assert.Equal(t, 0, published)

	reloaded := newNoteStore(t, storage.Store, nil, IDPolicyActiveAndTrash)
	assert.Equal(t, []int{1}, ids(reloaded.List("")))
}

func TestMutations_PublishAfterCommit(t *testing.T) {
	ctx := context.Background()
	bus := syncbus.New()
	s := newNoteStore(t, kv.NewMemoryStore(), bus, IDPolicyActiveAndTrash)

	var seen [][]int
	bus.Subscribe(func() { seen = append(seen, ids(s.List(""))) })

	s.Create(ctx, note{Title: "a"})
	s.SoftDelete(ctx, 1, "x")
	s.Restore(ctx, 1, "x")

	assert.Equal(t, [][]int{{1}, {}, {1}}, seen)
}

func TestLoad_SeedsOnlyOnFirstRun(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStore()
	opts := Options[note]{
		Schema:    noteSchema,
		Storage:   storage,
		ActiveKey: "notes",
		TrashKey:  "deletedNotes",
		Seed: func() []note {
			return []note{{Title: "first"}, {Title: "second"}}
		},
	}

	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, []int{1, 2}, ids(s.List("")))

	s.SoftDelete(ctx, 1, "x")
	s.SoftDelete(ctx, 2, "x")

	again, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, again.Load(ctx))
	assert.Empty(t, again.List(""), "an emptied store must not be reseeded")
	assert.Len(t, again.Trash(), 2)

	require.NoError(t, again.Reset(ctx))
	assert.Equal(t, []int{1, 2}, ids(again.List("")))
	assert.Empty(t, again.Trash())
}

// Every id ever created sits in exactly one of active or trash until purged.
func TestRandomOperations_KeepIDsInExactlyOneSet(t *testing.T) {
	ctx := context.Background()
	s := newNoteStore(t, kv.NewMemoryStore(), nil, IDPolicyActiveAndTrash)
	rng := rand.New(rand.NewSource(7))

	created := map[int]bool{}
	purged := map[int]bool{}

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			n, err := s.Create(ctx, note{Title: "n"})
			require.NoError(t, err)
			require.False(t, created[n.ID], "id %d allocated twice", n.ID)
			created[n.ID] = true
		case 1:
			if active := s.List(""); len(active) > 0 {
				_, err := s.SoftDelete(ctx, active[rng.Intn(len(active))].ID, "x")
				require.NoError(t, err)
			}
		case 2:
			if trash := s.Trash(); len(trash) > 0 {
				_, err := s.Restore(ctx, trash[rng.Intn(len(trash))].ID, "x")
				require.NoError(t, err)
			}
		case 3:
			if trash := s.Trash(); len(trash) > 0 {
				id := trash[rng.Intn(len(trash))].ID
				require.NoError(t, s.Purge(ctx, id))
				purged[id] = true
			}
		}

		counts := map[int]int{}
		for _, n := range s.List("") {
			counts[n.ID]++
		}
		for _, n := range s.Trash() {
			counts[n.ID]++
		}
		for id := range created {
			want := 1
			if purged[id] {
				want = 0
			}
			require.Equal(t, want, counts[id], "id %d after step %d", id, i)
		}
	}
}
