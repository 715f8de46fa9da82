package app

import (
	"context"
	"testing"
	"time"

	"github.com/dealer-comms/engine/internal/domain"
)

type fakeJobRepo struct {
	stuck []domain.Job

	failCalls []struct {
		id     string
		reason string
		status domain.JobStatus
	}
	listErr error
	failErr error
}

func (r *fakeJobRepo) ClaimPending(domain.Context, int) ([]domain.Job, error) { return nil, nil }
func (r *fakeJobRepo) Insert(domain.Context, string, domain.JobType, map[string]any, time.Time, string) (bool, error) {
	return false, nil
}
func (r *fakeJobRepo) Create(domain.Context, string, domain.JobType, map[string]any, time.Time, string) (string, error) {
	return "", nil
}
func (r *fakeJobRepo) MarkComplete(domain.Context, string, string) error { return nil }
func (r *fakeJobRepo) MarkFailed(_ domain.Context, id string, reason string, status domain.JobStatus) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.failCalls = append(r.failCalls, struct {
		id     string
		reason string
		status domain.JobStatus
	}{id: id, reason: reason, status: status})
	return nil
}
func (r *fakeJobRepo) Reschedule(domain.Context, string, int, time.Time, string) error { return nil }
func (r *fakeJobRepo) Get(domain.Context, string) (domain.Job, error)                  { return domain.Job{}, nil }
func (r *fakeJobRepo) ListStuckProcessing(domain.Context, time.Time, int) ([]domain.Job, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.stuck, nil
}

func TestNewStuckJobSweeperDefaults(t *testing.T) {
	repo := &fakeJobRepo{}
	s := NewStuckJobSweeper(repo, 0, 0)
	if s == nil {
		t.Fatalf("expected non-nil sweeper")
	}
	if s.maxProcessingAge <= 0 {
		t.Fatalf("maxProcessingAge should be set to default, got %v", s.maxProcessingAge)
	}
	if s.interval <= 0 {
		t.Fatalf("interval should be set to default, got %v", s.interval)
	}
}

func TestNewStuckJobSweeperNilRepo(t *testing.T) {
	if sweeper := NewStuckJobSweeper(nil, time.Minute, time.Minute); sweeper != nil {
		t.Fatalf("expected nil sweeper when repo is nil")
	}
}

func TestStuckJobSweeperSweepOnceMarksStuckJobsFailed(t *testing.T) {
	repo := &fakeJobRepo{
		stuck: []domain.Job{
			{ID: "old", Status: domain.JobStatusProcessing},
		},
	}
	s := &StuckJobSweeper{
		jobs:             repo,
		maxProcessingAge: 5 * time.Minute,
		interval:         time.Minute,
	}

	s.sweepOnce(context.Background())

	if len(repo.failCalls) != 1 {
		t.Fatalf("expected 1 mark-failed call, got %d", len(repo.failCalls))
	}
	call := repo.failCalls[0]
	if call.id != "old" {
		t.Fatalf("expected job 'old' to be marked failed, got %q", call.id)
	}
	if call.status != domain.JobStatusFailed {
		t.Fatalf("expected status %q, got %q", domain.JobStatusFailed, call.status)
	}
	if call.reason == "" {
		t.Fatalf("expected non-empty failure reason")
	}
}

func TestStuckJobSweeperSweepOnceSurvivesListError(t *testing.T) {
	repo := &fakeJobRepo{listErr: context.DeadlineExceeded}
	s := &StuckJobSweeper{jobs: repo, maxProcessingAge: time.Minute, interval: time.Minute}
	s.sweepOnce(context.Background())
	if len(repo.failCalls) != 0 {
		t.Fatalf("expected no mark-failed calls when list fails")
	}
}

func TestStuckJobSweeperRunStopsOnContextDone(t *testing.T) {
	repo := &fakeJobRepo{}
	s := NewStuckJobSweeper(repo, time.Minute, 10*time.Millisecond)
	if s == nil {
		t.Fatalf("expected non-nil sweeper")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(ch)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("Run did not exit after context cancellation")
	}
}
