package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/repository"
	"github.com/vasapolrittideah/reminder-app/shared/mailer"
)

const (
	DefaultConcurrency      = 10
	DefaultSendTimeout      = 30 * time.Second
	DefaultReconcileTimeout = 10 * time.Second
)

// Options tunes an Engine. Zero values fall back to the defaults.
type Options struct {
	Concurrency      int
	SendTimeout      time.Duration
	ReconcileTimeout time.Duration
	Location         *time.Location
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	if o.ReconcileTimeout <= 0 {
		o.ReconcileTimeout = DefaultReconcileTimeout
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine runs scan cycles: it claims due reminders, sends them and releases
// the claim of every reminder whose send failed.
type Engine struct {
	repo      repository.ReminderRepository
	users     repository.UserDirectory
	transport mailer.Transport
	logger    *zerolog.Logger
	opts      Options
}

// NewEngine creates a new Engine.
func NewEngine(
	repo repository.ReminderRepository,
	users repository.UserDirectory,
	transport mailer.Transport,
	logger *zerolog.Logger,
	opts Options,
) *Engine {
	return &Engine{
		repo:      repo,
		users:     users,
		transport: transport,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
}

// RunScanCycle runs one scan cycle. It is safe to call while a previous cycle
// is still running. An error is returned only when the reminders could not be
// read, in which case nothing was claimed.
func (e *Engine) RunScanCycle(ctx context.Context) (Summary, error) {
	start := time.Now()

	reminders, err := e.repo.ScanAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to scan reminders: %w", err)
	}

	var summary Summary

	due, skipped := Classify(ctx, reminders, e.opts.Now(), e.users, e.opts.Location, e.logger)
	for _, outcome := range skipped {
		summary.add(outcome)
	}

	claimed := e.claim(ctx, due, &summary)

	for _, outcome := range e.dispatch(ctx, claimed) {
		summary.add(outcome)
	}

	e.logger.Info().
		Int("scanned", len(reminders)).
		Int("dispatched", summary.Dispatched).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("contended", summary.Contended).
		Int("simulated", summary.Simulated).
		Dur("took", time.Since(start)).
		Msg("scan cycle finished")

	return summary, nil
}

// claim claims each due reminder with its own conditional update.
func (e *Engine) claim(ctx context.Context, due []Dispatch, summary *Summary) []Dispatch {
	claimed := make([]Dispatch, 0, len(due))

	for _, d := range due {
		id := d.Reminder.ID

		if err := ctx.Err(); err != nil {
			summary.add(Outcome{ReminderID: id, Status: StatusSkippedCancelled, Err: err})
			continue
		}

		ok, err := e.repo.Claim(ctx, id)
		if err != nil {
			e.logger.Error().Err(err).Str("reminder_id", id).Msg("failed to claim reminder")
			summary.add(Outcome{ReminderID: id, Status: StatusSkippedClaimError, Err: err})
			continue
		}
		if !ok {
			e.logger.Debug().Str("reminder_id", id).Msg("reminder already claimed")
			summary.add(Outcome{ReminderID: id, Status: StatusContended})
			continue
		}

		claimed = append(claimed, d)
	}

	return claimed
}

// dispatch sends claimed reminders on a bounded pool and reconciles each one.
func (e *Engine) dispatch(ctx context.Context, claimed []Dispatch) []Outcome {
	outcomes := make([]Outcome, len(claimed))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i, d := range claimed {
		g.Go(func() error {
			outcomes[i] = e.process(ctx, d)
			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}

func (e *Engine) process(ctx context.Context, d Dispatch) Outcome {
	outcome := Outcome{ReminderID: d.Reminder.ID, Recipient: d.Recipient}

	receipt, err := e.send(ctx, d)
	if err != nil {
		e.logger.Error().Err(err).
			Str("reminder_id", d.Reminder.ID).
			Str("recipient", d.Recipient).
			Msg("failed to send reminder")

		e.release(ctx, d.Reminder.ID)

		outcome.Status = StatusSendFailed
		outcome.Err = err
		return outcome
	}

	e.logger.Info().
		Str("reminder_id", d.Reminder.ID).
		Str("recipient", d.Recipient).
		Str("transport", receipt.Transport).
		Bool("simulated", receipt.Simulated).
		Msg("reminder sent")

	outcome.Status = StatusDelivered
	outcome.Simulated = receipt.Simulated
	return outcome
}

// send delivers one reminder. The send context survives cycle cancellation
// and is bounded by SendTimeout, so a claimed reminder always reaches
// reconciliation.
func (e *Engine) send(ctx context.Context, d Dispatch) (receipt mailer.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSendPanicked, r)
		}
	}()

	if ctx.Err() != nil {
		return mailer.Receipt{}, ErrCycleCancelled
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.SendTimeout)
	defer cancel()

	email := mailer.ReminderEmail(d.Sender, d.Recipient, d.Reminder.Title, d.Reminder.Description, d.ScheduledAt)

	return e.transport.Send(sendCtx, email)
}

// release unclaims a reminder so the next cycle retries it.
func (e *Engine) release(ctx context.Context, id string) {
	reconcileCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.ReconcileTimeout)
	defer cancel()

	ok, err := e.repo.Unclaim(reconcileCtx, id)
	if err != nil {
		e.logger.Error().Err(err).Str("reminder_id", id).Msg("failed to unclaim reminder, left claimed")
		return
	}
	if !ok {
		e.logger.Warn().Str("reminder_id", id).Msg("reminder was no longer claimed")
	}
}
