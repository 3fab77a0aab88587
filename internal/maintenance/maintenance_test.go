package maintenance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/auth"
	"github.com/folio/internal/db"
)

type fakeRunner struct {
	calls []string
}

func (f *fakeRunner) Migrate(context.Context) error {
	f.calls = append(f.calls, "migrate")
	return nil
}

func (f *fakeRunner) Fresh(context.Context) error {
	f.calls = append(f.calls, "fresh")
	return nil
}

func (f *fakeRunner) Seed(_ context.Context, class string) error {
	f.calls = append(f.calls, "seed:"+class)
	return nil
}

var operator = activity.Actor{ID: 1, Name: "admin"}

func TestParseAllowList(t *testing.T) {
	cases := map[string]Command{
		"migrate":                      {Kind: KindMigrate},
		"migrate-fresh":                {Kind: KindMigrateFresh},
		"migrate-fresh --seed":         {Kind: KindMigrateFreshSeed},
		"db-seed":                      {Kind: KindSeed},
		"  db-seed  ":                  {Kind: KindSeed},
		"db-seed --class=PostSeeder":   {Kind: KindSeedClass, Class: "PostSeeder"},
		`db-seed --class=App\Seeders\X`: {Kind: KindSeedClass, Class: `App\Seeders\X`},
	}
	for input, want := range cases {
		got, err := Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParseRejectsEverythingElse(t *testing.T) {
	for _, input := range []string{
		"",
		"rm -rf /",
		"migrate; rm -rf /",
		"MIGRATE",
		"migrate --force",
		"db-seed --class=",
		"db-seed --class=Post Seeder",
		"db-seed --class=Post;Seeder",
		"db-seed --class=../../etc",
		"php artisan migrate",
	} {
		_, err := Parse(input)
		assert.ErrorIs(t, err, ErrUnrecognizedCommand, input)
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "migrate", Command{Kind: KindMigrate}.String())
	assert.Equal(t, "migrate:fresh", Command{Kind: KindMigrateFresh}.String())
	assert.Equal(t, "migrate:fresh --seed", Command{Kind: KindMigrateFreshSeed}.String())
	assert.Equal(t, "db:seed", Command{Kind: KindSeed}.String())
	assert.Equal(t, "db:seed --class UserSeeder", Command{Kind: KindSeedClass, Class: "UserSeeder"}.String())
	assert.True(t, Command{Kind: KindMigrateFreshSeed}.Destructive())
	assert.False(t, Command{Kind: KindSeed}.Destructive())
}

func TestExecuteSeedClassIsAudited(t *testing.T) {
	runner := &fakeRunner{}
	recorder := &activity.MemoryRecorder{}
	d := NewDispatcher(runner, recorder, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	cmd, err := d.Execute(context.Background(), operator, "db-seed --class=ClassName")
	require.NoError(t, err)
	assert.Equal(t, KindSeedClass, cmd.Kind)
	assert.Equal(t, []string{"seed:ClassName"}, runner.calls)

	entries := recorder.ByChannel(activity.ChannelDeveloperPanel)
	require.Len(t, entries, 1)
	assert.Equal(t, "Executed command: db:seed --class ClassName", entries[0].Description)
	assert.Equal(t, activity.EventExecuted, entries[0].Event)
	assert.Equal(t, "admin", entries[0].CauserName)
	assert.Equal(t, "ClassName", entries[0].Properties["class"])
}

func TestExecuteRejectsUnknownInputWithoutSideEffects(t *testing.T) {
	runner := &fakeRunner{}
	recorder := &activity.MemoryRecorder{}
	var logs bytes.Buffer
	d := NewDispatcher(runner, recorder, slog.New(slog.NewTextHandler(&logs, nil)))

	_, err := d.Execute(context.Background(), operator, "rm -rf /")
	assert.ErrorIs(t, err, ErrUnrecognizedCommand)
	assert.Empty(t, runner.calls)
	assert.Empty(t, recorder.Entries())
	assert.Contains(t, logs.String(), "Invalid command received")
	assert.Contains(t, logs.String(), "level=ERROR")
}

func TestExecuteFreshSeedRunsBoth(t *testing.T) {
	runner := &fakeRunner{}
	recorder := &activity.MemoryRecorder{}
	var logs bytes.Buffer
	d := NewDispatcher(runner, recorder, slog.New(slog.NewTextHandler(&logs, nil)))

	_, err := d.Execute(context.Background(), activity.CLI, "migrate-fresh --seed")
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "seed:"}, runner.calls)
	assert.Contains(t, logs.String(), "Executing command: migrate:fresh --seed")

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Executed command: migrate:fresh --seed", entries[0].Description)
	assert.Equal(t, "cli", entries[0].CauserName)
}

func TestPanelListsCommandsAndSeeders(t *testing.T) {
	recorder := &activity.MemoryRecorder{}
	runner := NewGormRunner(nil, DefaultSeeders(Credentials{}, nil))
	d := NewDispatcher(runner, recorder, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	panel, err := d.Panel(context.Background(), operator)
	require.NoError(t, err)
	assert.Equal(t, AllowedCommands(), panel.Commands)
	assert.Equal(t, DatabaseSeederName, panel.Seeders[0])
	assert.Contains(t, panel.Seeders, "PostSeeder")

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Accessed developer panel.", entries[0].Description)
}

func setupMaintenanceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:maintenance-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb
}

func TestGormRunnerSeedsEverything(t *testing.T) {
	gdb := setupMaintenanceDB(t)
	seeders := DefaultSeeders(Credentials{Username: "root", Password: "secret"}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	runner := NewGormRunner(gdb, seeders)
	ctx := context.Background()

	require.NoError(t, runner.Migrate(ctx))
	require.NoError(t, runner.Seed(ctx, ""))
	// 重复执行不会产生重复数据
	require.NoError(t, runner.Seed(ctx, DatabaseSeederName))

	var permissions int64
	require.NoError(t, gdb.Model(&db.Permission{}).Count(&permissions).Error)
	assert.EqualValues(t, len(auth.AllPermissions()), permissions)

	var master db.Role
	require.NoError(t, gdb.Preload("Permissions").Where("name = ?", db.MasterRole).First(&master).Error)
	assert.Len(t, master.Permissions, len(auth.AllPermissions()))

	var root db.User
	require.NoError(t, gdb.Preload("Roles").Where("username = ?", "root").First(&root).Error)
	require.Len(t, root.Roles, 1)
	assert.Equal(t, db.MasterRole, root.Roles[0].Name)

	var posts int64
	require.NoError(t, gdb.Model(&db.Post{}).Count(&posts).Error)
	assert.EqualValues(t, 3, posts)

	var projects int64
	require.NoError(t, gdb.Model(&db.Project{}).Count(&projects).Error)
	assert.EqualValues(t, 2, projects)
}

func TestGormRunnerSeedClassAndFresh(t *testing.T) {
	gdb := setupMaintenanceDB(t)
	runner := NewGormRunner(gdb, DefaultSeeders(Credentials{}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	ctx := context.Background()

	require.NoError(t, runner.Migrate(ctx))
	require.NoError(t, runner.Seed(ctx, `Database\Seeders\ProjectSeeder`))

	var projects int64
	require.NoError(t, gdb.Model(&db.Project{}).Count(&projects).Error)
	assert.EqualValues(t, 2, projects)

	var experiences int64
	require.NoError(t, gdb.Model(&db.Experience{}).Count(&experiences).Error)
	assert.Zero(t, experiences)

	assert.ErrorIs(t, runner.Seed(ctx, "MissingSeeder"), ErrUnknownSeeder)

	require.NoError(t, runner.Fresh(ctx))
	require.NoError(t, gdb.Model(&db.Project{}).Count(&projects).Error)
	assert.Zero(t, projects)
}

func TestExecuteUnknownSeederIsNotAudited(t *testing.T) {
	gdb := setupMaintenanceDB(t)
	recorder := &activity.MemoryRecorder{}
	runner := NewGormRunner(gdb, DefaultSeeders(Credentials{}, nil))
	d := NewDispatcher(runner, recorder, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	_, err := d.Execute(context.Background(), operator, "migrate")
	require.NoError(t, err)

	_, err = d.Execute(context.Background(), operator, "db-seed --class=NoSuchSeeder")
	assert.ErrorIs(t, err, ErrUnknownSeeder)

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Executed command: migrate", entries[0].Description)
}
