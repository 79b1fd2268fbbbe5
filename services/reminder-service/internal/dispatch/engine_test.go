package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
)

func newTestEngine(repo *memRepository, users *memUsers, transport *fakeTransport, opts Options) *Engine {
	logger := zerolog.Nop()
	opts.Location = time.UTC
	opts.Now = func() time.Time { return testNow }
	return NewEngine(repo, users, transport, &logger, opts)
}

func TestEngine_DeliversDueReminder(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	transport := &fakeTransport{}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Dispatched)
	assert.Zero(t, summary.Failed)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, []string{"u@x.com"}, transport.sent[0].To)
	assert.Equal(t, "sender@x.com", transport.sent[0].From.Address)
	assert.Equal(t, "Reminder: Title r1", transport.sent[0].Subject)
	assert.True(t, repo.get("r1").Completed)
}

func TestEngine_DeliveredReminderIsTerminal(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	transport := &fakeTransport{}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	_, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Dispatched)
	assert.Empty(t, summary.Outcomes)
	assert.Equal(t, 1, transport.sentCount())
}

func TestEngine_NoCredentialsLeavesReminderPending(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	transport := &fakeTransport{}
	owner := &model.User{ID: "u1", Email: "u@x.com"}
	engine := newTestEngine(repo, newMemUsers(owner), transport, Options{})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, transport.sentCount())
	assert.False(t, repo.get("r1").Completed)
}

func TestEngine_SendFailureUnclaimsForRetry(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	transport := &fakeTransport{err: errTransport}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StatusSendFailed, summary.Outcomes[0].Status)
	assert.ErrorIs(t, summary.Outcomes[0].Err, errTransport)

	r1 := repo.get("r1")
	assert.False(t, r1.Completed)
	assert.Equal(t, 1, r1.FailedAttempts)

	transport.err = nil
	summary, err = engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Dispatched)
	assert.True(t, repo.get("r1").Completed)
}

func TestEngine_SendPanicIsRecovered(t *testing.T) {
	repo := newMemRepository(
		pendingReminder("r1", "2026-02-28 08:00:00"),
		pendingReminder("r2", "2026-02-28 08:00:00"),
	)
	transport := &fakeTransport{panicWith: "nil map write"}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Failed)
	for _, o := range summary.Outcomes {
		assert.ErrorIs(t, o.Err, ErrSendPanicked)
	}
	assert.False(t, repo.get("r1").Completed)
	assert.False(t, repo.get("r2").Completed)
}

func TestEngine_SendTimeoutIsAFailure(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	transport := &fakeTransport{blockOnCtx: true}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{SendTimeout: 20 * time.Millisecond})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.ErrorIs(t, summary.Outcomes[0].Err, context.DeadlineExceeded)
	assert.False(t, repo.get("r1").Completed)
}

func TestEngine_SoftDeletedReminderIsNotSent(t *testing.T) {
	deleted := pendingReminder("r1", "2026-02-28 08:00:00")
	deleted.Deleted = true
	repo := newMemRepository(deleted)
	transport := &fakeTransport{}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, summary.Outcomes)
	assert.Zero(t, transport.sentCount())
	assert.False(t, repo.get("r1").Completed)
}

func TestEngine_ConcurrentCyclesClaimOnce(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	repo.scanBarrier = &sync.WaitGroup{}
	repo.scanBarrier.Add(2)

	transport := &fakeTransport{}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	var (
		wg        sync.WaitGroup
		summaries [2]Summary
	)
	for i := range summaries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := engine.RunScanCycle(context.Background())
			assert.NoError(t, err)
			summaries[i] = s
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, summaries[0].Dispatched+summaries[1].Dispatched)
	assert.Equal(t, 1, summaries[0].Contended+summaries[1].Contended)
	assert.Equal(t, 1, transport.sentCount())
}

func TestEngine_ScanErrorFailsCycleWithoutClaims(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	repo.scanErr = errors.New("connection refused")
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), &fakeTransport{}, Options{})

	_, err := engine.RunScanCycle(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	assert.False(t, repo.get("r1").Completed)
}

func TestEngine_ClaimErrorSkipsReminder(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	repo.claimErr = errors.New("write conflict")
	transport := &fakeTransport{}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, StatusSkippedClaimError, summary.Outcomes[0].Status)
	assert.Zero(t, transport.sentCount())
}

func TestEngine_CancelledCycleClaimsNothing(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	transport := &fakeTransport{}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := engine.RunScanCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, StatusSkippedCancelled, summary.Outcomes[0].Status)
	assert.False(t, repo.get("r1").Completed)
	assert.Zero(t, transport.sentCount())
}

func TestEngine_CancelledAfterClaimUnclaims(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	transport := &fakeTransport{}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo.afterClaim = func(string) { cancel() }

	summary, err := engine.RunScanCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StatusSendFailed, summary.Outcomes[0].Status)
	assert.ErrorIs(t, summary.Outcomes[0].Err, ErrCycleCancelled)
	assert.Zero(t, transport.sentCount())

	r1 := repo.get("r1")
	assert.False(t, r1.Completed)
	assert.Equal(t, 1, r1.FailedAttempts)
}

func TestEngine_UnclaimFailureIsLogged(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	repo.unclaimErr = errors.New("primary stepped down")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	engine := NewEngine(repo, newMemUsers(ownerWithCredentials()), &fakeTransport{err: errTransport}, &logger, Options{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, buf.String(), "left claimed")
	assert.Contains(t, buf.String(), "primary stepped down")
}

func TestEngine_ConcurrencyIsBounded(t *testing.T) {
	var reminders []*model.Reminder
	for i := range 6 {
		reminders = append(reminders, pendingReminder(fmt.Sprintf("r%d", i), "2026-02-28 08:00:00"))
	}
	repo := newMemRepository(reminders...)
	transport := &fakeTransport{delay: 20 * time.Millisecond}
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), transport, Options{Concurrency: 2})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Dispatched)
	assert.LessOrEqual(t, transport.maxInFlight, 2)
}

func TestEngine_CountsSimulatedDeliveries(t *testing.T) {
	repo := newMemRepository(pendingReminder("r1", "2026-02-28 08:00:00"))
	engine := newTestEngine(repo, newMemUsers(ownerWithCredentials()), &fakeTransport{simulated: true}, Options{})

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Dispatched)
	assert.Equal(t, 1, summary.Simulated)
	assert.True(t, summary.Outcomes[0].Simulated)
}
