package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/coldreach/coldreach/internal/assignment"
	"github.com/coldreach/coldreach/internal/mail"
	"github.com/coldreach/coldreach/internal/metrics"
	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/store"
	"github.com/coldreach/coldreach/internal/worker"
)

// AssignmentRecorder bumps the send counter on the ACTIVE assignment behind a
// dispatched email.
type AssignmentRecorder interface {
	RecordEmailSent(ctx context.Context, userID, templateID, recruiterID int64) error
}

// ResumeFetcher loads the user's stored resume as a mail attachment.
type ResumeFetcher interface {
	FetchAttachment(ctx context.Context, userID int64) (*mail.Attachment, error)
}

// Report summarises one dispatch run.
type Report struct {
	Users     int
	Processed int
	Sent      int
	Failed    int
}

type counters struct {
	processed atomic.Int64
	sent      atomic.Int64
	failed    atomic.Int64
}

// Dispatcher drains due scheduled emails. Each run fans users out over the
// worker pool; within a user, emails go out one at a time in due order. An
// email is claimed (SCHEDULED to SENDING) before the gateway is touched, so a
// run overlapping with a slow predecessor cannot send the same email twice.
// A failed send is marked FAILED and is not retried within the run.
type Dispatcher struct {
	users       store.UserStore
	emails      store.ScheduledEmailStore
	recruiters  store.RecruiterStore
	assignments AssignmentRecorder
	resumes     ResumeFetcher
	gateway     mail.Gateway
	pool        *worker.Pool
	limiter     *rate.Limiter
	timeout     time.Duration
	now         func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

type Config struct {
	SendRatePerSec float64
	SendBurst      int
	RunTimeout     time.Duration
}

func New(
	users store.UserStore,
	emails store.ScheduledEmailStore,
	recruiters store.RecruiterStore,
	assignments AssignmentRecorder,
	resumes ResumeFetcher,
	gateway mail.Gateway,
	pool *worker.Pool,
	cfg Config,
) *Dispatcher {
	if cfg.SendRatePerSec <= 0 {
		cfg.SendRatePerSec = 1
	}
	if cfg.SendBurst < 1 {
		cfg.SendBurst = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Dispatcher{
		users:       users,
		emails:      emails,
		recruiters:  recruiters,
		assignments: assignments,
		resumes:     resumes,
		gateway:     gateway,
		pool:        pool,
		limiter:     rate.NewLimiter(rate.Limit(cfg.SendRatePerSec), cfg.SendBurst),
		timeout:     cfg.RunTimeout,
		now:         time.Now,
	}
}

// Start runs RunOnce on the given interval until Stop is called.
func (d *Dispatcher) Start(interval time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return errors.New("dispatcher already started")
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		report, err := d.RunOnce(context.Background())
		if err != nil {
			slog.Error("dispatch run failed", "error", err)
			return
		}
		if report.Processed > 0 {
			slog.Info("dispatch run finished",
				"users", report.Users,
				"processed", report.Processed,
				"sent", report.Sent,
				"failed", report.Failed)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling dispatch: %w", err)
	}
	c.Start()
	d.cron = c
	return nil
}

// Stop halts the interval schedule and waits for an in-flight trigger to
// return. Emails already claimed by a running dispatch still finish through
// the worker pool.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce dispatches every due email once. It returns early with a partial
// report when the run timeout expires; per-user tasks already on the pool
// keep running to completion but are no longer waited for.
func (d *Dispatcher) RunOnce(ctx context.Context) (*Report, error) {
	metrics.DispatchRuns.Inc()
	started := d.now()
	defer func() { metrics.DispatchDuration.Observe(time.Since(started).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// In-flight tasks observe the run deadline, so a SENDING row claimed more
	// than a full run timeout ago can only be a leftover from a crash between
	// claim and send. Release those before picking up new work.
	if released, err := d.emails.FailStaleSendingEmails(ctx, started.Add(-d.timeout)); err != nil {
		slog.Error("releasing stale sending emails", "error", err)
	} else if released > 0 {
		slog.Warn("released stale sending emails", "count", released)
	}

	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	var (
		tally counters
		wg    sync.WaitGroup
	)
	for _, u := range users {
		u := u
		wg.Add(1)
		err := d.pool.Submit(ctx, func(taskCtx context.Context) {
			defer wg.Done()
			d.dispatchUser(taskCtx, u.ID, started, &tally)
		})
		if err != nil {
			wg.Done()
			slog.Warn("could not queue dispatch for user", "user_id", u.ID, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var runErr error
	select {
	case <-done:
	case <-ctx.Done():
		runErr = fmt.Errorf("dispatch run timed out: %w", ctx.Err())
	}

	report := &Report{
		Users:     len(users),
		Processed: int(tally.processed.Load()),
		Sent:      int(tally.sent.Load()),
		Failed:    int(tally.failed.Load()),
	}
	return report, runErr
}

func (d *Dispatcher) dispatchUser(ctx context.Context, userID int64, asOf time.Time, tally *counters) {
	due, err := d.emails.ListDueScheduledEmails(ctx, userID, asOf)
	if err != nil {
		slog.Error("listing due emails", "user_id", userID, "error", err)
		return
	}

	for i := range due {
		if ctx.Err() != nil {
			return
		}
		d.dispatchOne(ctx, &due[i], tally)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, email *models.ScheduledEmail, tally *counters) {
	claimed, err := d.emails.ClaimScheduledEmail(ctx, email.UserID, email.ID)
	if err != nil {
		slog.Error("claiming email", "email_id", email.ID, "error", err)
		return
	}
	if !claimed {
		// Another run got here first, or the email was cancelled.
		return
	}
	tally.processed.Add(1)

	if err := d.limiter.Wait(ctx); err != nil {
		d.markFailed(ctx, email, fmt.Errorf("rate limiter: %w", err))
		tally.failed.Add(1)
		return
	}

	msg := mail.Message{
		To:      email.Recipient,
		Subject: email.Subject,
		Body:    email.Body,
		HTML:    email.HTML,
	}
	if email.AttachResume && d.resumes != nil {
		att, err := d.resumes.FetchAttachment(ctx, email.UserID)
		if err != nil {
			slog.Warn("resume attachment unavailable, sending without it",
				"user_id", email.UserID, "email_id", email.ID, "error", err)
		} else {
			msg.Attachment = att
		}
	}

	messageID, err := d.gateway.Send(ctx, msg)
	if err != nil {
		d.markFailed(ctx, email, err)
		tally.failed.Add(1)
		metrics.EmailsFailed.Inc()
		return
	}

	if err := d.emails.MarkScheduledEmailSent(ctx, email.UserID, email.ID, messageID, d.now().UTC()); err != nil {
		slog.Error("marking email sent", "email_id", email.ID, "error", err)
	}
	tally.sent.Add(1)
	metrics.EmailsSent.Inc()

	d.recordSideEffects(ctx, email)
}

// recordSideEffects updates the assignment counter and the recruiter's
// last-contacted time. The email itself is already SENT, so failures here are
// logged and swallowed.
func (d *Dispatcher) recordSideEffects(ctx context.Context, email *models.ScheduledEmail) {
	if email.RecruiterID != nil {
		if err := d.recruiters.UpdateRecruiterLastContacted(ctx, email.UserID, *email.RecruiterID, d.now().UTC()); err != nil {
			slog.Warn("updating recruiter last contacted",
				"user_id", email.UserID, "recruiter_id", *email.RecruiterID, "error", err)
		}
	}

	if email.TemplateID == nil || email.RecruiterID == nil {
		return
	}
	err := d.assignments.RecordEmailSent(ctx, email.UserID, *email.TemplateID, *email.RecruiterID)
	if err != nil {
		if errors.Is(err, assignment.ErrAssignmentNotFound) {
			slog.Info("no active assignment for sent email",
				"user_id", email.UserID, "template_id", *email.TemplateID, "recruiter_id", *email.RecruiterID)
			return
		}
		slog.Error("recording assignment send", "email_id", email.ID, "error", err)
	}
}

func (d *Dispatcher) markFailed(ctx context.Context, email *models.ScheduledEmail, cause error) {
	slog.Error("email send failed", "email_id", email.ID, "to", email.Recipient, "error", cause)
	if err := d.emails.MarkScheduledEmailFailed(ctx, email.UserID, email.ID, cause.Error()); err != nil {
		slog.Error("marking email failed", "email_id", email.ID, "error", err)
	}
}
