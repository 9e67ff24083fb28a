package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

func newTestDevice(t *testing.T, repo *MemoryDeviceRepository, key, owner string) *panel_models.Device {
	t.Helper()
	d, err := repo.Create(context.Background(), panel_models.NewDevice("sensor", "", key, owner))
	require.NoError(t, err)
	return d
}

func TestMemoryDeviceQueueOrderAndDrain(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()
	d := newTestDevice(t, repo, "AbCd1234", "u1")

	require.NoError(t, repo.EnqueueCommand(ctx, d.ID, json.RawMessage(`"X"`)))
	require.NoError(t, repo.EnqueueCommand(ctx, d.ID, json.RawMessage(`"Y"`)))

	cmds, err := repo.DrainCommands(ctx, "AbCd1234")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.JSONEq(t, `"X"`, string(cmds[0]))
	assert.JSONEq(t, `"Y"`, string(cmds[1]))

	again, err := repo.DrainCommands(ctx, "AbCd1234")
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.Empty(t, again)
}

func TestMemoryDeviceConcurrentDrainDeliversOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()
	d := newTestDevice(t, repo, "KEY00001", "u1")

	const total = 200
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.EnqueueCommand(ctx, d.ID, json.RawMessage(fmt.Sprintf("%d", i)))
		}(i)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var pollers sync.WaitGroup
	for p := 0; p < 4; p++ {
		pollers.Add(1)
		go func() {
			defer pollers.Done()
			for i := 0; i < 50; i++ {
				cmds, err := repo.DrainCommands(ctx, "KEY00001")
				if err != nil {
					return
				}
				mu.Lock()
				for _, c := range cmds {
					seen[string(c)]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	pollers.Wait()

	rest, err := repo.DrainCommands(ctx, "KEY00001")
	require.NoError(t, err)
	for _, c := range rest {
		seen[string(c)]++
	}

	assert.Len(t, seen, total)
	for cmd, n := range seen {
		assert.Equal(t, 1, n, cmd)
	}
}

func TestMemoryDeviceKeyIsUnique(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	newTestDevice(t, repo, "SAMEKEY1", "u1")

	_, err := repo.Create(context.Background(), panel_models.NewDevice("cam", "", "SAMEKEY1", "u2"))
	assert.ErrorIs(t, err, interfaces.ErrDuplicate)
}

func TestMemoryDeviceHeartbeatAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()
	a := newTestDevice(t, repo, "AAAA0001", "u1")
	newTestDevice(t, repo, "BBBB0002", "u1")
	newTestDevice(t, repo, "CCCC0003", "u2")

	now := time.Now().UTC()
	d, err := repo.Heartbeat(ctx, "AAAA0001", "10.0.0.5", now)
	require.NoError(t, err)
	assert.Equal(t, panel_models.DeviceOnline, d.Status)
	assert.Equal(t, "10.0.0.5", d.IP)

	_, err = repo.Heartbeat(ctx, "CCCC0003", "10.0.0.6", now)
	require.NoError(t, err)

	recent, err := repo.ListSeenSince(ctx, "u1", now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, a.ID, recent[0].ID)

	_, err = repo.Heartbeat(ctx, "nope", "", now)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	mine, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	all, err := repo.ListByUser(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryDeviceDeleteReleasesKey(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()
	d := newTestDevice(t, repo, "GONE0001", "u1")

	require.NoError(t, repo.Delete(ctx, d.ID))
	_, err := repo.GetByKey(ctx, "GONE0001")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, d.ID), interfaces.ErrNotFound)
	assert.ErrorIs(t, repo.EnqueueCommand(ctx, d.ID, json.RawMessage(`1`)), interfaces.ErrNotFound)
}

func TestMemoryProjectVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProjectRepository()

	p, err := repo.Create(ctx, panel_models.NewProject("greenhouse", "north wing"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	_, err = repo.Create(ctx, panel_models.NewProject("greenhouse", ""))
	assert.ErrorIs(t, err, interfaces.ErrDuplicate)

	doc := properties.NewDocument()
	doc.Replace(properties.Input, []properties.Property{properties.New("temp", properties.KindFloat)})

	v, err := repo.UpdateProperties(ctx, p.ID, doc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = repo.UpdateProperties(ctx, p.ID, doc, 1)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict)

	_, err = repo.UpdateProperties(ctx, 999, doc, 1)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	got, err := repo.GetByName(ctx, "greenhouse")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Contains(t, got.Properties.Input, "temp")

	// returned documents are copies
	delete(got.Properties.Input, "temp")
	again, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, again.Properties.Input, "temp")
}

func TestMemoryProjectRenameConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProjectRepository()
	a, err := repo.Create(ctx, panel_models.NewProject("a", ""))
	require.NoError(t, err)
	_, err = repo.Create(ctx, panel_models.NewProject("b", ""))
	require.NoError(t, err)

	a.Name = "b"
	assert.ErrorIs(t, repo.UpdateDetails(ctx, a), interfaces.ErrDuplicate)

	a.Name = "c"
	require.NoError(t, repo.UpdateDetails(ctx, a))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].Name)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), interfaces.ErrNotFound)
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	u, err := repo.Create(ctx, auth_models.NewUser("alice", "a@example.com", "hash", auth_models.RoleUser))
	require.NoError(t, err)
	assert.NotEmpty(t, u.UserID)

	_, err = repo.Create(ctx, auth_models.NewUser("alice", "other@example.com", "hash", auth_models.RoleUser))
	assert.ErrorIs(t, err, interfaces.ErrDuplicate)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, got.UserID)

	n, err := repo.CountByRole(ctx, auth_models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Delete(ctx, u.UserID, false))
	got, err = repo.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	page, err := repo.List(ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Nil(t, page.NextPage)

	require.NoError(t, repo.Delete(ctx, u.UserID, true))
	_, err = repo.GetByID(ctx, u.UserID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestMemoryRolesUpsertByName(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRoleRepository()
	for _, r := range auth_models.PredefinedRoles() {
		role := r
		_, err := repo.Create(ctx, &role)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &auth_models.Role{Name: auth_models.RoleAdmin, Description: "changed"})
	require.NoError(t, err)

	roles, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "changed", roles[0].Description)
}

func TestMemoryReportsKeepNewest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &panel_models.InputReport{
			ProjectID:  1,
			Values:     map[string]string{"n": fmt.Sprint(i)},
			ReceivedAt: time.Now(),
		}))
	}

	latest, err := repo.Latest(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "4", latest[0].Values["n"])
	assert.Equal(t, "3", latest[1].Values["n"])
	assert.False(t, latest[0].ID.IsZero())

	all, err := repo.Latest(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := repo.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
