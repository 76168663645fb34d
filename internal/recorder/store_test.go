package recorder_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepline-org/stepline/internal/config"
	"github.com/stepline-org/stepline/internal/recorder"

	_ "github.com/stepline-org/stepline/internal/recorder/drivers/sqlite"
)

func openTestStore(t *testing.T) *recorder.Store {
	t.Helper()

	store, err := recorder.Open(context.Background(), config.Store{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "steprun.db"),
		Table:     "step_runs",
		Retention: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := recorder.Open(context.Background(), config.Store{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.Session("nightly", "extract", "2024-01-01", map[string]any{"limit": 10})
	require.NoError(t, err)
	require.NotEmpty(t, sess.RunID())

	require.NoError(t, sess.Create(ctx))
	require.NoError(t, sess.Start(ctx))
	require.NoError(t, sess.Succeed(ctx))

	runs, err := store.Recent(ctx, "nightly", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, sess.RunID(), run.RunID)
	assert.Equal(t, "nightly", run.JobName)
	assert.Equal(t, "extract", run.StepName)
	assert.Equal(t, recorder.StatusSuccess, run.Status)
	assert.Equal(t, "2024-01-01", run.PartitionValue)
	assert.JSONEq(t, `{"limit":10}`, run.Params)
	assert.Equal(t, recorder.CreatedBySystem, run.CreatedBy)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.EndedAt)
	assert.False(t, run.EndedAt.Before(*run.StartedAt))
	assert.Empty(t, run.ErrorMessage)

	// TTL is stamped relative to creation using the configured retention.
	assert.WithinDuration(t, run.CreatedAt.Add(30*24*time.Hour), run.TTL, time.Minute)
}

func TestSessionPersistsEachTransition(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.Session("nightly", "transform", "2024-02-02", nil)
	require.NoError(t, err)

	// Every flush after the first updates an existing row, but must still
	// carry the immutable columns so a lost earlier write cannot leave the
	// insert path with an incomplete row.
	require.NoError(t, sess.Create(ctx))
	runs, err := store.Recent(ctx, "nightly", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recorder.StatusQueued, runs[0].Status)
	assert.Nil(t, runs[0].StartedAt)

	require.NoError(t, sess.Start(ctx))
	runs, err = store.Recent(ctx, "nightly", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recorder.StatusRunning, runs[0].Status)
	require.NotNil(t, runs[0].StartedAt)

	require.NoError(t, sess.Succeed(ctx))
	runs, err = store.Recent(ctx, "nightly", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recorder.StatusSuccess, runs[0].Status)
	assert.Equal(t, "nightly", runs[0].JobName)
	assert.Equal(t, "transform", runs[0].StepName)
	require.NotNil(t, runs[0].EndedAt)
}

func TestSessionFail(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.Session("nightly", "load", "", nil)
	require.NoError(t, err)
	require.NoError(t, sess.Create(ctx))
	require.NoError(t, sess.Start(ctx))
	require.NoError(t, sess.Fail(ctx, errors.New("exit status 1")))

	runs, err := store.Recent(ctx, "nightly", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recorder.StatusFailed, runs[0].Status)
	assert.Equal(t, "exit status 1", runs[0].ErrorMessage)
	require.NotNil(t, runs[0].EndedAt)
}

func TestSessionSkip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.Session("nightly", "report", "", nil)
	require.NoError(t, err)
	require.NoError(t, sess.Create(ctx))
	require.NoError(t, sess.Skip(ctx))

	runs, err := store.Recent(ctx, "nightly", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recorder.StatusSkipped, runs[0].Status)
	assert.Nil(t, runs[0].StartedAt)
}

func TestRecentOrderAndFilter(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	for _, job := range []string{"alpha", "beta", "alpha"} {
		sess, err := store.Session(job, "step", "", nil)
		require.NoError(t, err)
		require.NoError(t, sess.Create(ctx))
		time.Sleep(5 * time.Millisecond)
	}

	runs, err := store.Recent(ctx, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].CreatedAt.Before(runs[1].CreatedAt))

	all, err := store.Recent(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPrune(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.Session("nightly", "extract", "", nil)
	require.NoError(t, err)
	require.NoError(t, sess.Create(ctx))

	removed, err := store.Prune(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.Prune(ctx, time.Now().Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	runs, err := store.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
