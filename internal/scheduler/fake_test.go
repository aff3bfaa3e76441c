package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/cronfleet/internal/domain"
	"github.com/shaiso/cronfleet/internal/mq"
	"github.com/shaiso/cronfleet/internal/repo"
)

// memStore — TaskStore и HistoryStore в памяти с теми же гарантиями
// claim, что и у repo.TaskRepo.
type memStore struct {
	mu      sync.Mutex
	tasks   map[int64]*domain.Task
	history []domain.TaskHistory
	nextID  int64

	claimCalls    int
	claimErr      error
	historyErr    error
	releasedByIDs []string
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[int64]*domain.Task)}
}

func (m *memStore) add(name string, intervalSec int, fn string, nextRunAt time.Time) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := &domain.Task{
		ID:           m.nextID,
		Name:         name,
		IntervalSec:  intervalSec,
		FunctionName: fn,
		NextRunAt:    nextRunAt,
		CreatedAt:    nextRunAt,
		UpdatedAt:    nextRunAt,
	}
	m.tasks[t.ID] = t
	return clone(t)
}

func (m *memStore) get(id int64) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.tasks[id])
}

func (m *memStore) historyRecords() []domain.TaskHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TaskHistory(nil), m.history...)
}

func (m *memStore) claims() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimCalls
}

func (m *memStore) ClaimDue(_ context.Context, now time.Time, serverID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.claimCalls++
	if m.claimErr != nil {
		return nil, m.claimErr
	}

	var due []*domain.Task
	for _, t := range m.tasks {
		if !t.IsRunning && !t.NextRunAt.After(now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextRunAt.Equal(due[j].NextRunAt) {
			return due[i].NextRunAt.Before(due[j].NextRunAt)
		}
		return due[i].ID < due[j].ID
	})

	t := due[0]
	sid, started := serverID, now
	t.IsRunning, t.ServerID, t.StartedAt, t.UpdatedAt = true, &sid, &started, now
	return clone(t), nil
}

func (m *memStore) Release(_ context.Context, task *domain.Task, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !task.IsRunning || task.ServerID == nil || task.StartedAt == nil {
		return fmt.Errorf("%w: task %d is not claimed", repo.ErrInvalidState, task.ID)
	}
	t, ok := m.tasks[task.ID]
	if !ok || !t.IsRunning || *t.ServerID != *task.ServerID || !t.StartedAt.Equal(*task.StartedAt) {
		return fmt.Errorf("%w: task %d", repo.ErrClaimLost, task.ID)
	}

	last := completedAt
	t.IsRunning, t.ServerID, t.StartedAt = false, nil, nil
	t.LastRunAt = &last
	t.NextRunAt = t.NextRunAfter(completedAt)
	t.UpdatedAt = completedAt
	return nil
}

func (m *memStore) ReclaimStuck(_ context.Context, now, cutoff time.Time) ([]repo.ReclaimedTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []repo.ReclaimedTask
	for _, t := range m.tasks {
		if !t.IsRunning || t.StartedAt.After(cutoff) {
			continue
		}
		prev, since := *t.ServerID, *t.StartedAt
		t.IsRunning, t.ServerID, t.StartedAt = false, nil, nil
		t.NextRunAt = t.NextRunAfter(now)
		t.UpdatedAt = now
		out = append(out, repo.ReclaimedTask{Task: *clone(t), PreviousServerID: prev, StuckSince: since})
	}
	return out, nil
}

func (m *memStore) ReleaseByServer(_ context.Context, serverID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releasedByIDs = append(m.releasedByIDs, serverID)
	var n int64
	for _, t := range m.tasks {
		if t.IsRunning && *t.ServerID == serverID {
			t.IsRunning, t.ServerID, t.StartedAt = false, nil, nil
			t.NextRunAt = t.NextRunAfter(now)
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *memStore) Create(_ context.Context, h *domain.TaskHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.historyErr != nil {
		return m.historyErr
	}
	h.ID = int64(len(m.history) + 1)
	m.history = append(m.history, *h)
	return nil
}

func clone(t *domain.Task) *domain.Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.ServerID != nil {
		sid := *t.ServerID
		c.ServerID = &sid
	}
	if t.StartedAt != nil {
		st := *t.StartedAt
		c.StartedAt = &st
	}
	if t.LastRunAt != nil {
		lr := *t.LastRunAt
		c.LastRunAt = &lr
	}
	return &c
}

// fakeClock — управляемые часы.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualTickers выдаёт тикеры, которые тикают только по команде теста.
type manualTickers struct {
	mu      sync.Mutex
	tickers map[time.Duration]*manualTicker
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func newManualTickers() *manualTickers {
	return &manualTickers{tickers: make(map[time.Duration]*manualTicker)}
}

func (m *manualTickers) factory(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	m.tickers[d] = t
	return t
}

func (m *manualTickers) get(d time.Duration) *manualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickers[d]
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu        sync.Mutex
	executed  []mq.TaskExecutedPayload
	reclaimed []mq.TaskReclaimedPayload
	deadlines []time.Duration // оставшееся время ctx на момент публикации
	err       error
}

func (p *recordingPublisher) recordDeadline(ctx context.Context) {
	if d, ok := ctx.Deadline(); ok {
		p.deadlines = append(p.deadlines, time.Until(d))
	} else {
		p.deadlines = append(p.deadlines, 0)
	}
}

func (p *recordingPublisher) PublishTaskExecuted(ctx context.Context, payload mq.TaskExecutedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordDeadline(ctx)
	p.executed = append(p.executed, payload)
	return p.err
}

func (p *recordingPublisher) PublishTaskReclaimed(ctx context.Context, payload mq.TaskReclaimedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordDeadline(ctx)
	p.reclaimed = append(p.reclaimed, payload)
	return p.err
}
