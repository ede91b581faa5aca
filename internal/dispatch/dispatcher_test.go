package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coldreach/coldreach/internal/assignment"
	"github.com/coldreach/coldreach/internal/mail"
	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/worker"
)

type mockUserStore struct {
	users []models.User
}

func (m *mockUserStore) CreateUser(_ context.Context, _, _, _ string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			return &m.users[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) ListUsers(_ context.Context) ([]models.User, error) {
	return m.users, nil
}

type mockEmailStore struct {
	mu     sync.Mutex
	emails map[int64]*models.ScheduledEmail
	nextID int64
}

func newMockEmailStore() *mockEmailStore {
	return &mockEmailStore{emails: make(map[int64]*models.ScheduledEmail), nextID: 1}
}

func (m *mockEmailStore) add(userID int64, e models.ScheduledEmail) *models.ScheduledEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	e.UserID = userID
	e.PublicID = uuid.New()
	if e.Status == "" {
		e.Status = models.ScheduleScheduled
	}
	m.nextID++
	m.emails[e.ID] = &e
	return &e
}

func (m *mockEmailStore) CreateScheduledEmail(_ context.Context, userID int64, e models.ScheduledEmail) (*models.ScheduledEmail, error) {
	return m.add(userID, e), nil
}

func (m *mockEmailStore) GetScheduledEmailByID(_ context.Context, userID, id int64) (*models.ScheduledEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *mockEmailStore) GetScheduledEmailByPublicID(_ context.Context, _ int64, _ uuid.UUID) (*models.ScheduledEmail, error) {
	return nil, sql.ErrNoRows
}

func (m *mockEmailStore) ListScheduledEmailsByUser(_ context.Context, userID int64) ([]models.ScheduledEmail, error) {
	return nil, nil
}

func (m *mockEmailStore) ListDueScheduledEmails(_ context.Context, userID int64, now time.Time) ([]models.ScheduledEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledEmail
	for id := int64(1); id < m.nextID; id++ {
		e, ok := m.emails[id]
		if ok && e.UserID == userID && e.Status == models.ScheduleScheduled && !e.DueAt.After(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEmailStore) ClaimScheduledEmail(_ context.Context, userID, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID {
		return false, sql.ErrNoRows
	}
	if e.Status != models.ScheduleScheduled {
		return false, nil
	}
	e.Status = models.ScheduleSending
	now := time.Now()
	e.ClaimedAt = &now
	return true, nil
}

func (m *mockEmailStore) FailStaleSendingEmails(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var released int64
	for _, e := range m.emails {
		if e.Status == models.ScheduleSending && e.ClaimedAt != nil && e.ClaimedAt.Before(before) {
			e.Status = models.ScheduleFailed
			e.ErrorMessage = "interrupted before completion"
			released++
		}
	}
	return released, nil
}

func (m *mockEmailStore) MarkScheduledEmailSent(_ context.Context, userID, id int64, messageID string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID || e.Status != models.ScheduleSending {
		return sql.ErrNoRows
	}
	e.Status = models.ScheduleSent
	e.MessageID = messageID
	e.SentAt = &sentAt
	return nil
}

func (m *mockEmailStore) MarkScheduledEmailFailed(_ context.Context, userID, id int64, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID || e.Status != models.ScheduleSending {
		return sql.ErrNoRows
	}
	e.Status = models.ScheduleFailed
	e.ErrorMessage = errorMessage
	return nil
}

func (m *mockEmailStore) CancelScheduledEmail(_ context.Context, userID, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID {
		return false, sql.ErrNoRows
	}
	if e.Status != models.ScheduleScheduled {
		return false, nil
	}
	e.Status = models.ScheduleCancelled
	return true, nil
}

func (m *mockEmailStore) status(id int64) models.ScheduleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emails[id].Status
}

type mockRecruiterStore struct {
	mu            sync.Mutex
	lastContacted map[int64]time.Time
}

func (m *mockRecruiterStore) CreateRecruiter(_ context.Context, _ int64, _ models.RecruiterContact) (*models.RecruiterContact, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRecruiterStore) GetRecruiterByID(_ context.Context, _, _ int64) (*models.RecruiterContact, error) {
	return nil, sql.ErrNoRows
}

func (m *mockRecruiterStore) ListRecruitersByUser(_ context.Context, _ int64) ([]models.RecruiterContact, error) {
	return nil, nil
}

func (m *mockRecruiterStore) UpdateRecruiter(_ context.Context, _ int64, _ *models.RecruiterContact) error {
	return nil
}

func (m *mockRecruiterStore) UpdateRecruiterLastContacted(_ context.Context, _, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastContacted == nil {
		m.lastContacted = make(map[int64]time.Time)
	}
	m.lastContacted[id] = at
	return nil
}

func (m *mockRecruiterStore) DeleteRecruiter(_ context.Context, _, _ int64) error { return nil }

type mockRecorder struct {
	mu    sync.Mutex
	calls []int64 // recruiter ids
	err   error
}

func (m *mockRecorder) RecordEmailSent(_ context.Context, _, _, recruiterID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, recruiterID)
	return nil
}

type mockGateway struct {
	mu     sync.Mutex
	sent   []mail.Message
	failTo map[string]error
}

func (m *mockGateway) Send(_ context.Context, msg mail.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failTo[msg.To]; ok {
		return "", err
	}
	m.sent = append(m.sent, msg)
	return uuid.NewString(), nil
}

func newTestDispatcher(t *testing.T, users *mockUserStore, emails *mockEmailStore, gw *mockGateway, rec *mockRecorder) (*Dispatcher, *mockRecruiterStore) {
	t.Helper()
	pool := worker.NewPool(context.Background(), 4, 16)
	t.Cleanup(pool.Stop)
	recruiters := &mockRecruiterStore{}
	d := New(users, emails, recruiters, rec, nil, gw, pool, Config{
		SendRatePerSec: 1000,
		SendBurst:      1000,
		RunTimeout:     5 * time.Second,
	})
	return d, recruiters
}

func TestRunOnce_SendsDueEmails(t *testing.T) {
	users := &mockUserStore{users: []models.User{{ID: 1}, {ID: 2}}}
	emails := newMockEmailStore()
	past := time.Now().Add(-time.Hour)
	e1 := emails.add(1, models.ScheduledEmail{Recipient: "a@example.com", Subject: "A", DueAt: past})
	e2 := emails.add(2, models.ScheduledEmail{Recipient: "b@example.com", Subject: "B", DueAt: past})
	future := emails.add(1, models.ScheduledEmail{Recipient: "c@example.com", Subject: "C", DueAt: time.Now().Add(time.Hour)})

	gw := &mockGateway{}
	d, _ := newTestDispatcher(t, users, emails, gw, &mockRecorder{})

	report, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Users != 2 || report.Processed != 2 || report.Sent != 2 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if emails.status(e1.ID) != models.ScheduleSent || emails.status(e2.ID) != models.ScheduleSent {
		t.Error("due emails should be SENT")
	}
	if emails.status(future.ID) != models.ScheduleScheduled {
		t.Error("future email should stay SCHEDULED")
	}
}

func TestRunOnce_FailedSendMarkedNotRetried(t *testing.T) {
	users := &mockUserStore{users: []models.User{{ID: 1}}}
	emails := newMockEmailStore()
	e := emails.add(1, models.ScheduledEmail{Recipient: "down@example.com", Subject: "X", DueAt: time.Now().Add(-time.Minute)})

	gw := &mockGateway{failTo: map[string]error{"down@example.com": errors.New("550 mailbox unavailable")}}
	d, _ := newTestDispatcher(t, users, emails, gw, &mockRecorder{})

	report, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Failed != 1 || report.Sent != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if emails.status(e.ID) != models.ScheduleFailed {
		t.Errorf("expected FAILED, got %s", emails.status(e.ID))
	}
	if got := emails.emails[e.ID].ErrorMessage; got != "550 mailbox unavailable" {
		t.Errorf("error message not recorded, got %q", got)
	}
	if len(gw.sent) != 0 {
		t.Error("failed email must not be retried within the run")
	}
}

func TestRunOnce_FailureDoesNotStopLaterEmails(t *testing.T) {
	users := &mockUserStore{users: []models.User{{ID: 1}}}
	emails := newMockEmailStore()
	first := emails.add(1, models.ScheduledEmail{Recipient: "down@example.com", Subject: "A", DueAt: time.Now().Add(-2 * time.Minute)})
	second := emails.add(1, models.ScheduledEmail{Recipient: "up@example.com", Subject: "B", DueAt: time.Now().Add(-time.Minute)})
	cancelled := emails.add(1, models.ScheduledEmail{
		Recipient: "gone@example.com", Subject: "C",
		DueAt: time.Now().Add(-time.Minute), Status: models.ScheduleCancelled,
	})

	gw := &mockGateway{failTo: map[string]error{"down@example.com": errors.New("550 mailbox unavailable")}}
	d, _ := newTestDispatcher(t, users, emails, gw, &mockRecorder{})

	report, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Processed != 2 || report.Sent != 1 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if emails.status(first.ID) != models.ScheduleFailed {
		t.Errorf("first email = %s, want FAILED", emails.status(first.ID))
	}
	if emails.status(second.ID) != models.ScheduleSent {
		t.Errorf("second email = %s, a failure before it must not block it", emails.status(second.ID))
	}
	if emails.status(cancelled.ID) != models.ScheduleCancelled {
		t.Errorf("cancelled email = %s, want CANCELLED untouched", emails.status(cancelled.ID))
	}
	if len(gw.sent) != 1 || gw.sent[0].To != "up@example.com" {
		t.Errorf("gateway sent %v, want only up@example.com", gw.sent)
	}
}

func TestRunOnce_ReleasesStaleSendingEmails(t *testing.T) {
	users := &mockUserStore{users: []models.User{{ID: 1}}}
	emails := newMockEmailStore()
	claimed := time.Now().Add(-time.Hour)
	stale := emails.add(1, models.ScheduledEmail{
		Recipient: "a@example.com", Subject: "A",
		DueAt: claimed, Status: models.ScheduleSending, ClaimedAt: &claimed,
	})

	d, _ := newTestDispatcher(t, users, emails, &mockGateway{}, &mockRecorder{})

	if _, err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if emails.status(stale.ID) != models.ScheduleFailed {
		t.Errorf("stale SENDING email = %s, want FAILED", emails.status(stale.ID))
	}
	if got := emails.emails[stale.ID].ErrorMessage; got != "interrupted before completion" {
		t.Errorf("error message = %q", got)
	}
}

func TestRunOnce_ClaimedEmailSkipped(t *testing.T) {
	users := &mockUserStore{users: []models.User{{ID: 1}}}
	emails := newMockEmailStore()
	e := emails.add(1, models.ScheduledEmail{Recipient: "a@example.com", Subject: "A", DueAt: time.Now().Add(-time.Minute)})

	gw := &mockGateway{}
	d, _ := newTestDispatcher(t, users, emails, gw, &mockRecorder{})

	// An overlapping run claimed the email between the due listing and the
	// claim attempt.
	emails.emails[e.ID].Status = models.ScheduleSending

	var tally counters
	d.dispatchOne(context.Background(), e, &tally)

	if tally.processed.Load() != 0 || len(gw.sent) != 0 {
		t.Error("claimed email should be skipped without touching the gateway")
	}
}

func TestRunOnce_RecordsAssignmentAndLastContacted(t *testing.T) {
	users := &mockUserStore{users: []models.User{{ID: 1}}}
	emails := newMockEmailStore()
	templateID, recruiterID := int64(20), int64(10)
	emails.add(1, models.ScheduledEmail{
		Recipient: "a@example.com", Subject: "A",
		DueAt:      time.Now().Add(-time.Minute),
		TemplateID: &templateID, RecruiterID: &recruiterID,
	})

	rec := &mockRecorder{}
	d, recruiters := newTestDispatcher(t, users, emails, &mockGateway{}, rec)

	if _, err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != recruiterID {
		t.Errorf("assignment recorder calls = %v, want [10]", rec.calls)
	}
	if _, ok := recruiters.lastContacted[recruiterID]; !ok {
		t.Error("recruiter last-contacted not updated")
	}
}

func TestRunOnce_MissingAssignmentDoesNotFailSend(t *testing.T) {
	users := &mockUserStore{users: []models.User{{ID: 1}}}
	emails := newMockEmailStore()
	templateID, recruiterID := int64(20), int64(10)
	e := emails.add(1, models.ScheduledEmail{
		Recipient: "a@example.com", Subject: "A",
		DueAt:      time.Now().Add(-time.Minute),
		TemplateID: &templateID, RecruiterID: &recruiterID,
	})

	rec := &mockRecorder{err: assignment.ErrAssignmentNotFound}
	d, _ := newTestDispatcher(t, users, emails, &mockGateway{}, rec)

	report, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Sent != 1 {
		t.Errorf("send should succeed regardless, report %+v", report)
	}
	if emails.status(e.ID) != models.ScheduleSent {
		t.Errorf("expected SENT, got %s", emails.status(e.ID))
	}
}

func TestRunOnce_NoUsersNoWork(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockUserStore{}, newMockEmailStore(), &mockGateway{}, &mockRecorder{})
	report, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Users != 0 || report.Processed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}
