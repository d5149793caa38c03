package roles

import (
	"context"
	"testing"
	"time"

	"github.com/hrdesk/hrdesk/internal/apperr"
	"github.com/hrdesk/hrdesk/internal/kv"
	"github.com/hrdesk/hrdesk/internal/models"
	"github.com/hrdesk/hrdesk/internal/recordstore"
	"github.com/hrdesk/hrdesk/internal/syncbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Storage == nil {
		opts.Storage = kv.NewMemoryStore()
	}
	opts.Now = func() time.Time { return fixedNow }

	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))
	return s
}

// emptyStore returns a store whose seed roles have been purged.
func emptyStore(t *testing.T, opts Options) *Store {
	t.Helper()
	ctx := context.Background()
	s := newStore(t, opts)
	for _, r := range s.List("") {
		_, err := s.SoftDelete(ctx, "test", r.ID)
		require.NoError(t, err)
		require.NoError(t, s.Purge(ctx, r.ID))
	}
	return s
}

func names(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.Name
	}
	return out
}

func TestLoad_SeedsAdminAndUser(t *testing.T) {
	s := newStore(t, Options{})

	got := s.List("")
	require.Len(t, got, 2)
	assert.Equal(t, models.Role{
		ID: AdminRoleID, Name: "Admin", Description: "Full system access",
		ModifiedBy: models.SystemActor, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}, got[0])
	assert.Equal(t, "User", got[1].Name)
	assert.Equal(t, models.SystemActor, got[1].ModifiedBy)
}

func TestCreate_ValidatesRequiredFields(t *testing.T) {
	s := newStore(t, Options{})
	ctx := context.Background()

	var verr *apperr.ValidationError
	_, err := s.Create(ctx, "admin", "   ", "desc")
	assert.ErrorAs(t, err, &verr)
	_, err = s.Create(ctx, "admin", "Name", "")
	assert.ErrorAs(t, err, &verr)

	_, err = s.Update(ctx, "admin", AdminRoleID, "", "x")
	assert.ErrorAs(t, err, &verr)
}

func TestCreate_TrimsAndStampsActor(t *testing.T) {
	s := newStore(t, Options{})

	r, err := s.Create(context.Background(), "jane.doe", "  Auditor ", " Reads reports ")
	require.NoError(t, err)
	assert.Equal(t, 3, r.ID)
	assert.Equal(t, "Auditor", r.Name)
	assert.Equal(t, "Reads reports", r.Description)
	assert.Equal(t, "jane.doe", r.ModifiedBy)
}

func TestScenario_DeleteAndRestoreReorders(t *testing.T) {
	ctx := context.Background()
	s := emptyStore(t, Options{IDPolicy: recordstore.IDPolicyActiveOnly})

	qa, err := s.Create(ctx, "admin", "QA Lead", "desc")
	require.NoError(t, err)
	assert.Equal(t, 1, qa.ID)

	support, err := s.Create(ctx, "admin", "Support", "desc2")
	require.NoError(t, err)
	assert.Equal(t, 2, support.ID)

	_, err = s.SoftDelete(ctx, "admin", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Support"}, names(s.List("")))
	assert.Equal(t, []string{"QA Lead"}, names(s.Trash()))

	_, err = s.Restore(ctx, "admin", 1)
	require.NoError(t, err)
	active := s.List("")
	require.Len(t, active, 2)
	assert.Equal(t, 2, active[0].ID)
	assert.Equal(t, 1, active[1].ID)
}

func TestSoftDelete_StampsDeletedByAndRestoreClearsIt(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, Options{})

	deleted, err := s.SoftDelete(ctx, "hr.manager", UserRoleID)
	require.NoError(t, err)
	assert.Equal(t, "hr.manager", deleted.DeletedBy)
	assert.Equal(t, "hr.manager", deleted.ModifiedBy)

	_, inTrash, found := s.Lookup(UserRoleID)
	assert.True(t, found)
	assert.True(t, inTrash)

	restored, err := s.Restore(ctx, "hr.lead", UserRoleID)
	require.NoError(t, err)
	assert.Empty(t, restored.DeletedBy)
	assert.Equal(t, "hr.lead", restored.ModifiedBy)
	assert.Equal(t, deleted.Name, restored.Name)
	assert.Equal(t, deleted.Description, restored.Description)
}

func TestList_NameOnlyContract(t *testing.T) {
	ctx := context.Background()
	s := emptyStore(t, Options{})
	s.Create(ctx, "admin", "Administrator", "Runs the system")
	s.Create(ctx, "admin", "User", "Regular staff")

	assert.Equal(t, []string{"Administrator"}, names(s.List("admin")))
}

func TestList_DescriptionSearchIsOptIn(t *testing.T) {
	ctx := context.Background()

	nameOnly := emptyStore(t, Options{})
	nameOnly.Create(ctx, "admin", "Payroll", "Handles salary runs")
	assert.Empty(t, nameOnly.List("salary"))

	withDesc := emptyStore(t, Options{SearchDescriptions: true})
	withDesc.Create(ctx, "admin", "Payroll", "Handles salary runs")
	assert.Equal(t, []string{"Payroll"}, names(withDesc.List("SALARY")))
}

func TestMutations_NotifyBus(t *testing.T) {
	ctx := context.Background()
	bus := syncbus.New()
	s := newStore(t, Options{Bus: bus})

	count := 0
	bus.Subscribe(func() { count++ })

	r, _ := s.Create(ctx, "admin", "Recruiter", "Hires people")
	s.Update(ctx, "admin", r.ID, "Recruiter", "Hires and onboards")
	s.SoftDelete(ctx, "admin", r.ID)
	s.Restore(ctx, "admin", r.ID)
	s.SoftDelete(ctx, "admin", r.ID)
	s.Purge(ctx, r.ID)

	assert.Equal(t, 6, count)
	assert.False(t, s.Exists(r.ID))
}

func TestReset_RestoresSeed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, Options{})
	s.Create(ctx, "admin", "Temp", "temp")
	s.SoftDelete(ctx, "admin", AdminRoleID)

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, []string{"Admin", "User"}, names(s.List("")))
	assert.Empty(t, s.Trash())
}
