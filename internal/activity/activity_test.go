package activity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRecordsAndListsNewestFirst(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "activity.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	admin := Actor{ID: 1, Name: "admin"}
	require.NoError(t, store.Record(ctx, NewEntry(ChannelPosts, admin, EventCreated, "Created post: Hello").On("post", 7)))
	require.NoError(t, store.Record(ctx, NewEntry(ChannelExperiences, admin, EventDeleted, "Deleted experience: Engineer").With("company", "Acme")))
	require.NoError(t, store.Record(ctx, NewEntry(ChannelDeveloperPanel, CLI, EventExecuted, "Executed command: migrate")))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
	require.Len(t, all.Entries, 3)
	assert.Equal(t, "Executed command: migrate", all.Entries[0].Description)
	assert.Equal(t, "cli", all.Entries[0].CauserName)
	assert.False(t, all.Entries[0].CreatedAt.IsZero())

	posts, err := store.List(ctx, Filter{Channel: ChannelPosts})
	require.NoError(t, err)
	require.Len(t, posts.Entries, 1)
	assert.Equal(t, "post", posts.Entries[0].SubjectType)
	assert.EqualValues(t, 7, posts.Entries[0].SubjectID)

	experiences, err := store.List(ctx, Filter{Channel: ChannelExperiences, CauserID: 1})
	require.NoError(t, err)
	require.Len(t, experiences.Entries, 1)
	assert.Equal(t, "Acme", experiences.Entries[0].Properties["company"])
}

func TestSQLiteStorePaginates(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, NewEntry(ChannelProjects, Actor{ID: 2, Name: "editor"}, EventUpdated, "Updated project")))
	}

	page, err := store.List(ctx, Filter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Entries, 2)
}

func TestEntryWithDoesNotShareProperties(t *testing.T) {
	base := NewEntry(ChannelRoles, Actor{ID: 1, Name: "admin"}, EventUpdated, "Updated role").With("a", 1)
	derived := base.With("b", 2)

	assert.NotContains(t, base.Properties, "b")
	assert.Contains(t, derived.Properties, "a")
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, Entry) error { return errors.New("disk full") }

func TestMultiRecordsEverywhereAndJoinsErrors(t *testing.T) {
	mem := &MemoryRecorder{}
	var buf bytes.Buffer
	logger := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	err := Multi{failingRecorder{}, mem, logger}.Record(context.Background(),
		NewEntry(ChannelPosts, Actor{ID: 1, Name: "admin"}, EventDeleted, "Deleted post: Hello"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, mem.ByChannel(ChannelPosts), 1)
	assert.Contains(t, buf.String(), "channel=post_management")
	assert.Contains(t, buf.String(), "Deleted post: Hello")
}
