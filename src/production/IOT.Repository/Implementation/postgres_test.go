package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/health"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

func openTestPostgres(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping Postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, health.NewDatabaseManager(db).CreateTables(ctx))
	return db
}

func uniqueSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

func newPostgresTestDevice(t *testing.T, db *sql.DB) (*PostgresDeviceRepository, *panel_models.Device) {
	t.Helper()
	ctx := context.Background()

	users := NewPostgresUserRepository(db)
	owner, err := users.Create(ctx, auth_models.NewUser("pg-"+uniqueSuffix(), "pg@example.com", "hash", auth_models.RoleUser))
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Delete(context.Background(), owner.UserID, true) })

	repo := NewPostgresDeviceRepository(db)
	d, err := repo.Create(ctx, panel_models.NewDevice("sensor", "", "K"+uniqueSuffix(), owner.UserID))
	require.NoError(t, err)
	return repo, d
}

func TestPostgresDeviceQueueOrderAndDrain(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	repo, d := newPostgresTestDevice(t, db)

	require.NoError(t, repo.EnqueueCommand(ctx, d.ID, json.RawMessage(`"X"`)))
	require.NoError(t, repo.EnqueueCommand(ctx, d.ID, json.RawMessage(`{"action":"snap"}`)))

	cmds, err := repo.DrainCommands(ctx, d.Key)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.JSONEq(t, `"X"`, string(cmds[0]))
	assert.JSONEq(t, `{"action":"snap"}`, string(cmds[1]))

	again, err := repo.DrainCommands(ctx, d.Key)
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.Empty(t, again)

	_, err = repo.DrainCommands(ctx, "no-such-key")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, repo.EnqueueCommand(ctx, -1, json.RawMessage(`1`)), interfaces.ErrNotFound)
}

func TestPostgresDeviceConcurrentDrainDeliversOnce(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	repo, d := newPostgresTestDevice(t, db)

	const total = 100
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.EnqueueCommand(ctx, d.ID, json.RawMessage(fmt.Sprintf("%d", i))))
		}(i)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	drain := func() {
		cmds, err := repo.DrainCommands(ctx, d.Key)
		assert.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		for _, c := range cmds {
			seen[string(c)]++
		}
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drain()
		}()
	}
	wg.Wait()
	drain()

	assert.Len(t, seen, total)
	for cmd, n := range seen {
		assert.Equal(t, 1, n, "command %s delivered %d times", cmd, n)
	}
}

func TestPostgresProjectVersioning(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	repo := NewPostgresProjectRepository(db)

	name := "greenhouse-" + uniqueSuffix()
	p, err := repo.Create(ctx, panel_models.NewProject(name, "north wing"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Delete(context.Background(), p.ID) })
	assert.Equal(t, int64(1), p.Version)

	_, err = repo.Create(ctx, panel_models.NewProject(name, ""))
	assert.ErrorIs(t, err, interfaces.ErrDuplicate)

	doc := properties.NewDocument()
	doc.Replace(properties.Input, []properties.Property{properties.New("temp", properties.KindFloat)})

	v, err := repo.UpdateProperties(ctx, p.ID, doc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = repo.UpdateProperties(ctx, p.ID, doc, 1)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict)

	_, err = repo.UpdateProperties(ctx, -1, doc, 1)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	got, err := repo.GetByName(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Contains(t, got.Properties.Input, "temp")
}

func TestPostgresProjectConcurrentWritersOneWins(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	repo := NewPostgresProjectRepository(db)

	p, err := repo.Create(ctx, panel_models.NewProject("race-"+uniqueSuffix(), ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Delete(context.Background(), p.ID) })

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := properties.NewDocument()
			doc.Replace(properties.Control, []properties.Property{properties.New(fmt.Sprintf("c%d", i), properties.KindInt)})
			_, err := repo.UpdateProperties(ctx, p.ID, doc, p.Version)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.ErrorIs(t, err, interfaces.ErrVersionConflict)
			conflicts++
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Version+1, got.Version)
}
