package schedule

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coldreach/coldreach/internal/models"
)

type mockEmailStore struct {
	emails map[int64]*models.ScheduledEmail
	nextID int64
}

func newMockEmailStore() *mockEmailStore {
	return &mockEmailStore{emails: make(map[int64]*models.ScheduledEmail), nextID: 1}
}

func (m *mockEmailStore) CreateScheduledEmail(_ context.Context, userID int64, email models.ScheduledEmail) (*models.ScheduledEmail, error) {
	email.ID = m.nextID
	email.UserID = userID
	email.PublicID = uuid.New()
	m.nextID++
	m.emails[email.ID] = &email
	cp := email
	return &cp, nil
}

func (m *mockEmailStore) GetScheduledEmailByID(_ context.Context, userID, id int64) (*models.ScheduledEmail, error) {
	e, ok := m.emails[id]
	if !ok || e.UserID != userID {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *mockEmailStore) GetScheduledEmailByPublicID(_ context.Context, userID int64, publicID uuid.UUID) (*models.ScheduledEmail, error) {
	for _, e := range m.emails {
		if e.UserID == userID && e.PublicID == publicID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEmailStore) ListScheduledEmailsByUser(_ context.Context, userID int64) ([]models.ScheduledEmail, error) {
	var out []models.ScheduledEmail
	for id := int64(1); id < m.nextID; id++ {
		if e, ok := m.emails[id]; ok && e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEmailStore) ListDueScheduledEmails(_ context.Context, userID int64, now time.Time) ([]models.ScheduledEmail, error) {
	var out []models.ScheduledEmail
	for id := int64(1); id < m.nextID; id++ {
		if e, ok := m.emails[id]; ok && e.UserID == userID && e.Status == models.ScheduleScheduled && !e.DueAt.After(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEmailStore) ClaimScheduledEmail(_ context.Context, userID, id int64) (bool, error) {
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
	e, ok := m.emails[id]
	if !ok || e.UserID != userID || e.Status != models.ScheduleSending {
		return sql.ErrNoRows
	}
	e.Status = models.ScheduleFailed
	e.ErrorMessage = errorMessage
	e.RetryCount++
	return nil
}

func (m *mockEmailStore) CancelScheduledEmail(_ context.Context, userID, id int64) (bool, error) {
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

type mockRecruiterStore struct {
	recruiters map[int64]*models.RecruiterContact
}

func (m *mockRecruiterStore) CreateRecruiter(_ context.Context, _ int64, _ models.RecruiterContact) (*models.RecruiterContact, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRecruiterStore) GetRecruiterByID(_ context.Context, userID, id int64) (*models.RecruiterContact, error) {
	r, ok := m.recruiters[id]
	if !ok || r.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (m *mockRecruiterStore) ListRecruitersByUser(_ context.Context, _ int64) ([]models.RecruiterContact, error) {
	return nil, nil
}

func (m *mockRecruiterStore) UpdateRecruiter(_ context.Context, _ int64, _ *models.RecruiterContact) error {
	return nil
}

func (m *mockRecruiterStore) UpdateRecruiterLastContacted(_ context.Context, _, _ int64, _ time.Time) error {
	return nil
}

func (m *mockRecruiterStore) DeleteRecruiter(_ context.Context, _, _ int64) error { return nil }

type mockTemplateStore struct {
	templates  map[int64]*models.EmailTemplate
	usageBumps map[int64]int
}

func (m *mockTemplateStore) CreateTemplate(_ context.Context, _ int64, _ models.EmailTemplate) (*models.EmailTemplate, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTemplateStore) GetTemplateByID(_ context.Context, userID, id int64) (*models.EmailTemplate, error) {
	t, ok := m.templates[id]
	if !ok || t.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *mockTemplateStore) GetTemplateByName(_ context.Context, _ int64, _ string) (*models.EmailTemplate, error) {
	return nil, sql.ErrNoRows
}

func (m *mockTemplateStore) ListTemplatesByUser(_ context.Context, _ int64) ([]models.EmailTemplate, error) {
	return nil, nil
}

func (m *mockTemplateStore) ListTemplatesByUserAndCategory(_ context.Context, _ int64, _ models.TemplateCategory) ([]models.EmailTemplate, error) {
	return nil, nil
}

func (m *mockTemplateStore) ListTemplatesByUserAndStatus(_ context.Context, _ int64, _ models.TemplateStatus) ([]models.EmailTemplate, error) {
	return nil, nil
}

func (m *mockTemplateStore) ListTemplatesByUserCategoryAndStatus(_ context.Context, _ int64, _ models.TemplateCategory, _ models.TemplateStatus) ([]models.EmailTemplate, error) {
	return nil, nil
}

func (m *mockTemplateStore) UpdateTemplate(_ context.Context, _ int64, _ *models.EmailTemplate) error {
	return nil
}

func (m *mockTemplateStore) UpdateTemplateStatus(_ context.Context, _, _ int64, _ models.TemplateStatus) error {
	return nil
}

func (m *mockTemplateStore) IncrementTemplateUsage(_ context.Context, _, id int64, _ time.Time) error {
	if m.usageBumps == nil {
		m.usageBumps = make(map[int64]int)
	}
	m.usageBumps[id]++
	return nil
}

func (m *mockTemplateStore) DeleteTemplate(_ context.Context, _, _ int64) error { return nil }

type mockUserStore struct {
	users map[int64]*models.User
}

func (m *mockUserStore) CreateUser(_ context.Context, _, _, _ string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserStore) ListUsers(_ context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func newTestService() (*Service, *mockEmailStore, *mockTemplateStore) {
	es := newMockEmailStore()
	rs := &mockRecruiterStore{recruiters: map[int64]*models.RecruiterContact{
		10: {ID: 10, UserID: 1, Email: "sam@acme.example", Name: "Sam", Company: "Acme", JobRole: "Platform Engineer"},
	}}
	ts := &mockTemplateStore{templates: map[int64]*models.EmailTemplate{
		20: {
			ID: 20, UserID: 1, Name: "Intro",
			Subject: "Hello from {MyName}",
			Body:    "Hi {RecruiterName}, I am interested in the {Role} role at {Company}.",
		},
	}}
	us := &mockUserStore{users: map[int64]*models.User{
		1: {ID: 1, Name: "Alex", Email: "alex@example.com"},
	}}
	svc := NewService(es, rs, ts, us)
	svc.now = func() time.Time { return time.Date(2024, 9, 17, 10, 0, 0, 0, time.UTC) }
	return svc, es, ts
}

func TestSchedule_Defaults(t *testing.T) {
	svc, _, _ := newTestService()

	email, err := svc.Schedule(context.Background(), 1, ScheduleParams{
		Recipient: "sam@acme.example",
		Subject:   "Hello",
		Body:      "Hi there",
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if email.Status != models.ScheduleScheduled {
		t.Errorf("expected SCHEDULED, got %s", email.Status)
	}
	if email.Priority != models.PriorityNormal {
		t.Errorf("expected NORMAL priority, got %s", email.Priority)
	}
	if !email.DueAt.Equal(svc.now().UTC()) {
		t.Errorf("zero due time should default to now, got %v", email.DueAt)
	}
}

func TestSchedule_RejectsEmptyRecipient(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Schedule(context.Background(), 1, ScheduleParams{Subject: "Hello"}); err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestComposeFromTemplate(t *testing.T) {
	svc, _, ts := newTestService()

	email, err := svc.ComposeFromTemplate(context.Background(), 1, ComposeParams{
		TemplateID:  20,
		RecruiterID: 10,
	})
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if email.Recipient != "sam@acme.example" {
		t.Errorf("recipient = %q, want recruiter email", email.Recipient)
	}
	if email.Subject != "Hello from Alex" {
		t.Errorf("subject = %q", email.Subject)
	}
	want := "Hi Sam, I am interested in the Platform Engineer role at Acme."
	if email.Body != want {
		t.Errorf("body = %q, want %q", email.Body, want)
	}
	if email.TemplateID == nil || *email.TemplateID != 20 {
		t.Error("template id not recorded on the scheduled email")
	}
	if ts.usageBumps[20] != 1 {
		t.Errorf("expected one usage bump, got %d", ts.usageBumps[20])
	}
}

func TestComposeFromTemplate_ExtrasWin(t *testing.T) {
	svc, _, _ := newTestService()

	email, err := svc.ComposeFromTemplate(context.Background(), 1, ComposeParams{
		TemplateID:  20,
		RecruiterID: 10,
		Extras:      map[string]string{"Company": "Initech"},
	})
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	want := "Hi Sam, I am interested in the Platform Engineer role at Initech."
	if email.Body != want {
		t.Errorf("body = %q, want %q", email.Body, want)
	}
}

func TestComposeFromTemplate_UnknownTemplate(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ComposeFromTemplate(context.Background(), 1, ComposeParams{TemplateID: 99, RecruiterID: 10})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestComposeFromTemplate_UnknownRecruiter(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ComposeFromTemplate(context.Background(), 1, ComposeParams{TemplateID: 20, RecruiterID: 99})
	if !errors.Is(err, ErrRecruiterNotFound) {
		t.Errorf("expected ErrRecruiterNotFound, got %v", err)
	}
}

func TestCancel_OnlyFromScheduled(t *testing.T) {
	svc, es, _ := newTestService()
	email, _ := svc.Schedule(context.Background(), 1, ScheduleParams{
		Recipient: "sam@acme.example", Subject: "Hello",
	})

	if err := svc.Cancel(context.Background(), 1, email.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if es.emails[email.ID].Status != models.ScheduleCancelled {
		t.Errorf("expected CANCELLED, got %s", es.emails[email.ID].Status)
	}

	// A second cancel finds the email already out of SCHEDULED.
	if err := svc.Cancel(context.Background(), 1, email.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got %v", err)
	}
}

func TestCancel_ClaimedEmailNotCancellable(t *testing.T) {
	svc, es, _ := newTestService()
	email, _ := svc.Schedule(context.Background(), 1, ScheduleParams{
		Recipient: "sam@acme.example", Subject: "Hello",
	})
	es.emails[email.ID].Status = models.ScheduleSending

	if err := svc.Cancel(context.Background(), 1, email.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got %v", err)
	}
}

func TestCancel_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.Cancel(context.Background(), 1, 99); !errors.Is(err, ErrEmailNotFound) {
		t.Errorf("expected ErrEmailNotFound, got %v", err)
	}
}
