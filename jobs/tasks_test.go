package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type fakeDeleter struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeDeleter) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func newSweepJob(store *fakeDeleter) *OverrideSweepJob {
	job := NewOverrideSweepJob(store, slog.New(slog.DiscardHandler), nil)
	job.clock = func() time.Time { return testNow }
	return job
}

func TestOverrideSweep(t *testing.T) {
	store := &fakeDeleter{deleted: 3}
	job := newSweepJob(store)

	task, err := NewOverrideSweepTask(72 * time.Hour)
	if err != nil {
		t.Fatalf("NewOverrideSweepTask: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	want := testNow.Add(-72 * time.Hour)
	if !store.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", store.cutoff, want)
	}
}

func TestOverrideSweepDefaultRetention(t *testing.T) {
	store := &fakeDeleter{}
	job := newSweepJob(store)

	task := asynq.NewTask(TaskOverrideSweep, []byte(`{}`))
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	want := testNow.Add(-30 * 24 * time.Hour)
	if !store.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want the 30 day default", store.cutoff)
	}
}

func TestOverrideSweepBadPayloadSkipsRetry(t *testing.T) {
	job := newSweepJob(&fakeDeleter{})

	task := asynq.NewTask(TaskOverrideSweep, []byte(`not json`))
	err := job.Handle(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}

func TestOverrideSweepStoreFailure(t *testing.T) {
	store := &fakeDeleter{err: errors.New("connection refused")}
	job := newSweepJob(store)

	task, err := NewOverrideSweepTask(time.Hour)
	if err != nil {
		t.Fatalf("NewOverrideSweepTask: %v", err)
	}
	if err := job.Handle(context.Background(), task); err == nil {
		t.Fatal("want error so asynq retries the sweep")
	}
}
