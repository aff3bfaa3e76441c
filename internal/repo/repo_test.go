package repo_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/cronfleet/internal/domain"
	"github.com/shaiso/cronfleet/internal/repo"
	"github.com/shaiso/cronfleet/internal/testutil"
)

var testDB *testutil.TestDB

func TestMain(m *testing.M) {
	flag.Parse()
	if !testing.Short() {
		db, err := testutil.StartPostgres(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres integration tests skipped: %v\n", err)
		} else {
			testDB = db
		}
	}

	code := m.Run()
	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

// now возвращает текущее время с точностью timestamptz.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func TestClaimDue_EarliestFirst(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	db.InsertTask(t, "later", 60, "cleanCache", t0.Add(-1*time.Second))
	earliest := db.InsertTask(t, "earliest", 60, "cleanCache", t0.Add(-10*time.Second))
	db.InsertTask(t, "future", 60, "cleanCache", t0.Add(time.Hour))

	claimed, err := tasks.ClaimDue(ctx, t0, "server-a")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	assert.Equal(t, earliest.ID, claimed.ID)
	assert.True(t, claimed.IsRunning)
	assert.Equal(t, "server-a", claimed.Holder())
	require.NotNil(t, claimed.StartedAt)
	assert.True(t, claimed.StartedAt.Equal(t0))
	assert.True(t, claimed.IsClaimConsistent())
}

func TestClaimDue_NothingDue(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	t0 := now()

	db.InsertTask(t, "future", 60, "cleanCache", t0.Add(time.Minute))

	claimed, err := tasks.ClaimDue(context.Background(), t0, "server-a")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimDue_SkipsRunning(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	db.InsertTask(t, "only", 60, "cleanCache", t0.Add(-time.Second))

	first, err := tasks.ClaimDue(ctx, t0, "server-a")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := tasks.ClaimDue(ctx, t0.Add(time.Second), "server-b")
	require.NoError(t, err)
	assert.Nil(t, second, "running task must not be claimed twice")
}

func TestClaimDue_AtMostOneConcurrent(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	t0 := now()

	task := db.InsertTask(t, "contended", 60, "cleanCache", t0.Add(-time.Second))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(serverID string) {
			defer wg.Done()
			<-start
			claimed, err := tasks.ClaimDue(context.Background(), t0, serverID)
			if err != nil && !errors.Is(err, repo.ErrConflict) {
				t.Errorf("ClaimDue(%s) unexpected error: %v", serverID, err)
				return
			}
			if claimed != nil {
				mu.Lock()
				winners = append(winners, serverID)
				mu.Unlock()
			}
		}(fmt.Sprintf("server-%d", i))
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)

	stored, err := tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRunning)
	assert.Equal(t, winners[0], stored.Holder())
}

func TestRelease_ReschedulesFromCompletion(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	db.InsertTask(t, "job", 60, "cleanCache", t0.Add(-time.Second))

	claimed, err := tasks.ClaimDue(ctx, t0, "server-a")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	completedAt := t0.Add(150 * time.Second)
	require.NoError(t, tasks.Release(ctx, claimed, completedAt))

	stored, err := tasks.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRunning)
	assert.Nil(t, stored.ServerID)
	assert.Nil(t, stored.StartedAt)
	require.NotNil(t, stored.LastRunAt)
	assert.True(t, stored.LastRunAt.Equal(completedAt))
	assert.True(t, stored.NextRunAt.Equal(completedAt.Add(60*time.Second)))
}

func TestRelease_NotClaimed(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)

	task := db.InsertTask(t, "idle", 60, "cleanCache", now())

	err := tasks.Release(context.Background(), task, now())
	assert.ErrorIs(t, err, repo.ErrInvalidState)
}

func TestRelease_AfterReclaimIsClaimLost(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	db.InsertTask(t, "slow", 60, "cleanCache", t0.Add(-time.Second))

	claimedA, err := tasks.ClaimDue(ctx, t0, "server-a")
	require.NoError(t, err)
	require.NotNil(t, claimedA)

	// sweep освобождает задачу, другой процесс её забирает
	sweepAt := t0.Add(5 * time.Minute)
	_, err = tasks.ReclaimStuck(ctx, sweepAt, sweepAt.Add(-5*time.Minute))
	require.NoError(t, err)

	claimedB, err := tasks.ClaimDue(ctx, sweepAt.Add(2*time.Minute), "server-b")
	require.NoError(t, err)
	require.NotNil(t, claimedB)

	err = tasks.Release(ctx, claimedA, sweepAt.Add(3*time.Minute))
	assert.ErrorIs(t, err, repo.ErrClaimLost)

	stored, err := tasks.GetByID(ctx, claimedA.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRunning)
	assert.Equal(t, "server-b", stored.Holder())
}

func TestReclaimStuck_Threshold(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	ctx := context.Background()
	t0 := now()
	threshold := 5 * time.Minute

	db.InsertTask(t, "stuck", 90, "cleanCache", t0.Add(-time.Second))
	claimed, err := tasks.ClaimDue(ctx, t0, "server-dead")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// до порога задача не трогается
	before := t0.Add(threshold - time.Second)
	reclaimed, err := tasks.ReclaimStuck(ctx, before, before.Add(-threshold))
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	// ровно на пороге задача освобождается
	at := t0.Add(threshold)
	reclaimed, err = tasks.ReclaimStuck(ctx, at, at.Add(-threshold))
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)

	rt := reclaimed[0]
	assert.Equal(t, claimed.ID, rt.Task.ID)
	assert.Equal(t, "server-dead", rt.PreviousServerID)
	assert.True(t, rt.StuckSince.Equal(t0))
	assert.False(t, rt.Task.IsRunning)
	assert.Nil(t, rt.Task.ServerID)
	assert.Nil(t, rt.Task.LastRunAt, "reclaim must not touch last_run_at")
	assert.True(t, rt.Task.NextRunAt.Equal(at.Add(90*time.Second)))

	history, err := repo.NewHistoryRepo(db.Pool).CountByTask(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Zero(t, history, "reclaim must not write history")
}

func TestReleaseByServer(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	db.InsertTask(t, "a", 60, "cleanCache", t0.Add(-2*time.Second))
	db.InsertTask(t, "b", 60, "cleanCache", t0.Add(-time.Second))

	mine, err := tasks.ClaimDue(ctx, t0, "server-a")
	require.NoError(t, err)
	require.NotNil(t, mine)
	other, err := tasks.ClaimDue(ctx, t0, "server-b")
	require.NoError(t, err)
	require.NotNil(t, other)

	stopAt := t0.Add(30 * time.Second)
	n, err := tasks.ReleaseByServer(ctx, "server-a", stopAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	released, err := tasks.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.False(t, released.IsRunning)
	assert.True(t, released.NextRunAt.Equal(stopAt.Add(60*time.Second)))

	untouched, err := tasks.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, untouched.IsRunning)
	assert.Equal(t, "server-b", untouched.Holder())
}

func TestTaskRepo_GetListCounts(t *testing.T) {
	db := testutil.Require(t, testDB)
	tasks := repo.NewTaskRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	db.InsertTask(t, "beta", 60, "cleanCache", t0.Add(-time.Second))
	db.InsertTask(t, "alpha", 60, "processData", t0.Add(time.Hour))

	_, err := tasks.ClaimDue(ctx, t0, "server-a")
	require.NoError(t, err)

	list, err := tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "beta", list[1].Name)

	byName, err := tasks.GetByName(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "processData", byName.FunctionName)

	_, err = tasks.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	counts, err := tasks.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCounts{Total: 2, Running: 1, Waiting: 1}, counts)
}

func TestHistoryRepo_ListFilterPaginate(t *testing.T) {
	db := testutil.Require(t, testDB)
	history := repo.NewHistoryRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	task := db.InsertTask(t, "job", 60, "cleanCache", t0)
	other := db.InsertTask(t, "other", 60, "analyzeLogs", t0)

	for i := 0; i < 5; i++ {
		started := t0.Add(time.Duration(i) * time.Minute)
		var runErr error
		if i%2 == 1 {
			runErr = errors.New("boom")
		}
		h := domain.NewTaskHistory(task, "server-a", started, started.Add(2*time.Minute), runErr)
		require.NoError(t, history.Create(ctx, h))
		assert.NotZero(t, h.ID)
	}
	h := domain.NewTaskHistory(other, "server-b", t0, t0.Add(time.Minute), nil)
	require.NoError(t, history.Create(ctx, h))

	all, total, err := history.List(ctx, repo.HistoryFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CompletedAt.After(all[i-1].CompletedAt), "history must be newest first")
	}

	failed, total, err := history.List(ctx, repo.HistoryFilter{
		TaskName: "job",
		Status:   domain.HistoryStatusFailed,
		Limit:    100,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, h := range failed {
		assert.Equal(t, domain.HistoryStatusFailed, h.Status)
		assert.Equal(t, "boom", h.ErrorMessage())
	}

	page, total, err := history.List(ctx, repo.HistoryFilter{ServerID: "server-a", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	recent, err := history.ListByTask(ctx, task.ID, 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	count, err := history.CountByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestHistoryRepo_Stats(t *testing.T) {
	db := testutil.Require(t, testDB)
	history := repo.NewHistoryRepo(db.Pool)
	ctx := context.Background()
	t0 := now()

	task := db.InsertTask(t, "job", 60, "cleanCache", t0)

	records := []struct {
		server   string
		started  time.Time
		duration time.Duration
		err      error
	}{
		{"server-a", t0.Add(-time.Hour), 2 * time.Minute, nil},
		{"server-b", t0.Add(-30 * time.Minute), 3 * time.Minute, nil},
		{"server-a", t0.Add(-10 * time.Minute), time.Minute, errors.New("failed")},
		// вне окна
		{"server-c", t0.Add(-48 * time.Hour), time.Minute, nil},
	}
	for _, r := range records {
		h := domain.NewTaskHistory(task, r.server, r.started, r.started.Add(r.duration), r.err)
		require.NoError(t, history.Create(ctx, h))
	}

	stats, err := history.Stats(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionCounts{Total: 3, Completed: 2, Failed: 1}, stats.Executions)
	assert.Equal(t, []string{"server-a", "server-b"}, stats.ActiveServers)
	require.Len(t, stats.Performance, 1)
	assert.Equal(t, "job", stats.Performance[0].TaskName)
	assert.Equal(t, 2, stats.Performance[0].ExecutionCount)
	assert.Equal(t, 150*time.Second, stats.Performance[0].AvgDuration)
}

func TestMigrationVersion(t *testing.T) {
	db := testutil.Require(t, testDB)

	version, dirty, err := repo.MigrationVersion(db.DSN)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)
}
