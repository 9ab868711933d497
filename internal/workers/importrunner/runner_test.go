package importrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voterfield/internal/domain"
	"voterfield/internal/services/audit"
	"voterfield/internal/services/imports"
	"voterfield/internal/testutil"
)

func setup(t *testing.T) (*imports.Service, *testutil.Store, testutil.Tenant) {
	t.Helper()
	store := testutil.NewStore()
	tenant := testutil.SeedTenant(t, store, "acme")
	svc := imports.New(store, store, store, store, audit.New(store, nil), nil, imports.Options{})
	return svc, store, tenant
}

func submit(t *testing.T, svc *imports.Service, tenant testutil.Tenant, n int) domain.Job {
	t.Helper()
	recs := make([]domain.VoterFields, n)
	job, err := svc.SubmitInline(context.Background(), tenant.AdminCaller(), recs)
	require.NoError(t, err)
	return job
}

func TestRunProcessesQueuedJobs(t *testing.T) {
	svc, store, tenant := setup(t)
	jobs := []domain.Job{submit(t, svc, tenant, 4), submit(t, svc, tenant, 6)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, store, svc, 2, 10*time.Millisecond, nil)
		close(done)
	}()

	require.Eventually(t, func() bool {
		for _, j := range jobs {
			got, err := svc.GetJob(context.Background(), tenant.AdminCaller(), j.ID)
			if err != nil || got.Status != domain.JobCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	n, err := store.CountVoters(context.Background(), tenant.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Zero(t, store.Pending())
}

func TestRunWithoutWorkersReturns(t *testing.T) {
	_, store, _ := setup(t)
	Run(context.Background(), store, nil, 0, time.Millisecond, nil)
}

func TestProcessInline(t *testing.T) {
	svc, store, tenant := setup(t)
	ctx := context.Background()
	job := submit(t, svc, tenant, 3)

	require.NoError(t, ProcessInline(ctx, store, svc, job.ID))
	got, err := svc.GetJob(ctx, tenant.AdminCaller(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)

	err = ProcessInline(ctx, store, svc, job.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

type countingReaper struct{ calls atomic.Int32 }

func (r *countingReaper) ReapStuck(context.Context, time.Duration) (int, error) {
	r.calls.Add(1)
	return 0, nil
}

func TestReapRunsOnInterval(t *testing.T) {
	r := &countingReaper{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Reap(ctx, r, 5*time.Millisecond, time.Minute, nil)
		close(done)
	}()
	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
