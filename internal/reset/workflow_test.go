package reset

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextai/nextai/internal/dynamotest"
	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/service"
	"github.com/nextai/nextai/internal/validation"
	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeGateway struct {
	accounts map[string]bool
	resetErr error

	mu         sync.Mutex
	resetMails int
}

func (g *fakeGateway) AccountExists(ctx context.Context, email string) bool {
	return g.accounts[email]
}

func (g *fakeGateway) SendPasswordResetEmail(ctx context.Context, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetMails++
	return g.resetErr
}

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
	block chan struct{}
}

func (s *recordingSender) SendVerificationCode(ctx context.Context, email, code string) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.codes == nil {
		s.codes = make(map[string]string)
	}
	s.codes[email] = code
	return nil
}

func (s *recordingSender) last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type prefixHasher struct{}

func (prefixHasher) HashPassword(password string) (string, error) {
	return "hashed:" + strings.Repeat("*", len(password)), nil
}

type memoryQueue struct {
	mu       sync.Mutex
	requests []models.PasswordResetRequest
	err      error
}

func (q *memoryQueue) Enqueue(ctx context.Context, req models.PasswordResetRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.requests = append(q.requests, req)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	workflow *Workflow
	gateway  *fakeGateway
	sender   *recordingSender
	queue    *memoryQueue
	clock    *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := newTestLogger()
	clock := &testClock{now: time.Date(2024, 2, 10, 14, 0, 0, 0, time.UTC)}

	store := repository.NewVerificationCodeRepository(dynamotest.New(), "NextAITest", 10*time.Minute, 24*time.Hour, logger).
		WithClock(clock.Now)

	h := &harness{
		gateway: &fakeGateway{accounts: map[string]bool{"alice@example.com": true}},
		sender:  &recordingSender{},
		queue:   &memoryQueue{},
		clock:   clock,
	}
	h.workflow = NewWorkflow(Dependencies{
		Gateway:   h.gateway,
		Store:     store,
		Generator: service.NewCodeGenerator(),
		Sender:    h.sender,
		Hasher:    prefixHasher{},
		Queue:     h.queue,
	}, logger)
	h.workflow.now = clock.Now
	return h
}

func TestWorkflowCompletesReset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := NewSession("s1")

	if err := h.workflow.SubmitEmail(ctx, s, " Alice@Example.com "); err != nil {
		t.Fatalf("SubmitEmail failed: %v", err)
	}
	if s.Step != StepCodeEntry || s.Email != "alice@example.com" {
		t.Fatalf("expected code entry for alice, got %+v", s)
	}

	code := h.sender.last("alice@example.com")
	if len(code) != 6 {
		t.Fatalf("expected a 6-digit code to be sent, got %q", code)
	}

	if err := h.workflow.SubmitCode(ctx, s, code); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if s.Step != StepPasswordEntry {
		t.Fatalf("expected password entry, got %s", s.Step)
	}

	if err := h.workflow.SubmitPassword(ctx, s, "NewPass123", "NewPass123"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	if s.Step != StepComplete || s.LastError != "" {
		t.Fatalf("expected clean completion, got %+v", s)
	}

	if len(h.queue.requests) != 1 {
		t.Fatalf("expected one queued request, got %d", len(h.queue.requests))
	}
	req := h.queue.requests[0]
	if req.Email != "alice@example.com" || req.ID == "" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if strings.Contains(req.PasswordHash, "NewPass123") {
		t.Fatal("queued request must not carry the plaintext password")
	}
}

func TestWorkflowUsedCodeNeverAdvances(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := NewSession("s1")

	if err := h.workflow.SubmitEmail(ctx, s, "alice@example.com"); err != nil {
		t.Fatalf("SubmitEmail failed: %v", err)
	}
	code := h.sender.last("alice@example.com")

	if err := h.workflow.SubmitCode(ctx, s, code); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if err := h.workflow.Back(s); err != nil {
		t.Fatalf("Back failed: %v", err)
	}

	err := h.workflow.SubmitCode(ctx, s, code)
	if !errors.Is(err, repository.ErrCodeAlreadyUsed) {
		t.Fatalf("expected ErrCodeAlreadyUsed, got %v", err)
	}
	if s.Step != StepCodeEntry {
		t.Fatalf("used code must not advance, got %s", s.Step)
	}
	if s.LastError != "This verification code has already been used" {
		t.Fatalf("unexpected message %q", s.LastError)
	}
}

func TestWorkflowEmailStepFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid email", func(t *testing.T) {
		h := newHarness(t)
		s := NewSession("s1")
		err := h.workflow.SubmitEmail(ctx, s, "not-an-email")
		if !errors.Is(err, validation.ErrEmailInvalid) {
			t.Fatalf("expected ErrEmailInvalid, got %v", err)
		}
		if s.Step != StepEmailEntry {
			t.Fatalf("expected email entry, got %s", s.Step)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		h := newHarness(t)
		s := NewSession("s1")
		err := h.workflow.SubmitEmail(ctx, s, "nobody@example.com")
		if !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
		if s.Step != StepEmailEntry || s.LastError != "No account found with this email address" {
			t.Fatalf("unexpected session: %+v", s)
		}
		if h.sender.last("nobody@example.com") != "" {
			t.Fatal("no code should be sent for an unknown account")
		}
	})

	t.Run("code delivery failure", func(t *testing.T) {
		h := newHarness(t)
		h.sender.err = errors.New("smtp: 421 service not available")
		s := NewSession("s1")
		err := h.workflow.SubmitEmail(ctx, s, "alice@example.com")
		if !errors.Is(err, ErrDeliveryFailed) {
			t.Fatalf("expected ErrDeliveryFailed, got %v", err)
		}
		if s.Step != StepEmailEntry {
			t.Fatalf("expected email entry, got %s", s.Step)
		}
		if strings.Contains(s.LastError, "smtp") {
			t.Fatalf("backend text leaked into message: %q", s.LastError)
		}
	})

	t.Run("provider reset email is best effort", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.resetErr = errors.New("quota exceeded")
		s := NewSession("s1")
		if err := h.workflow.SubmitEmail(ctx, s, "alice@example.com"); err != nil {
			t.Fatalf("expected success despite provider email failure, got %v", err)
		}
		if s.Step != StepCodeEntry {
			t.Fatalf("expected code entry, got %s", s.Step)
		}
	})
}

func TestWorkflowCodeStepFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := NewSession("s1")

	if err := h.workflow.SubmitEmail(ctx, s, "alice@example.com"); err != nil {
		t.Fatalf("SubmitEmail failed: %v", err)
	}
	code := h.sender.last("alice@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if err := h.workflow.SubmitCode(ctx, s, wrong); !errors.Is(err, repository.ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	if s.Step != StepCodeEntry || s.LastError != "Invalid verification code" {
		t.Fatalf("unexpected session: %+v", s)
	}

	h.clock.Advance(10*time.Minute + time.Second)
	if err := h.workflow.SubmitCode(ctx, s, code); !errors.Is(err, repository.ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if s.Step != StepCodeEntry {
		t.Fatalf("expired code must not advance, got %s", s.Step)
	}

	// Going back and requesting a new code recovers.
	if err := h.workflow.Back(s); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if s.LastError != "" || s.Email != "alice@example.com" {
		t.Fatalf("expected cleared error and kept email, got %+v", s)
	}
	if err := h.workflow.SubmitEmail(ctx, s, s.Email); err != nil {
		t.Fatalf("SubmitEmail failed: %v", err)
	}
	if err := h.workflow.SubmitCode(ctx, s, h.sender.last("alice@example.com")); err != nil {
		t.Fatalf("SubmitCode with fresh code failed: %v", err)
	}
}

func TestWorkflowPasswordStepFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := &Session{ID: "s1", Step: StepPasswordEntry, Email: "alice@example.com"}

	tests := []struct {
		name     string
		password string
		confirm  string
		want     error
	}{
		{name: "too short", password: "short1A", confirm: "short1A", want: validation.ErrPasswordTooShort},
		{name: "no uppercase", password: "alllowercase1", confirm: "alllowercase1", want: validation.ErrPasswordNoUpper},
		{name: "mismatch", password: "Valid123", confirm: "Valid124", want: validation.ErrPasswordMismatch},
		{
			name:     "longer than bcrypt accepts",
			password: "Valid123" + strings.Repeat("a", 72),
			confirm:  "Valid123" + strings.Repeat("a", 72),
			want:     validation.ErrPasswordTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.workflow.SubmitPassword(ctx, s, tt.password, tt.confirm)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if s.Step != StepPasswordEntry {
				t.Fatalf("expected password entry, got %s", s.Step)
			}
		})
	}

	h.queue.err = errors.New("redis: connection refused")
	if err := h.workflow.SubmitPassword(ctx, s, "Valid123", "Valid123"); err == nil {
		t.Fatal("expected queue failure")
	}
	if s.Step != StepPasswordEntry || s.LastError != "Something went wrong, please try again" {
		t.Fatalf("unexpected session after queue failure: %+v", s)
	}

	h.queue.err = nil
	h.gateway.resetErr = errors.New("provider down")
	if err := h.workflow.SubmitPassword(ctx, s, "Valid123", "Valid123"); err != nil {
		t.Fatalf("expected backup email failure to be tolerated, got %v", err)
	}
	if s.Step != StepComplete {
		t.Fatalf("expected completion, got %s", s.Step)
	}
}

func TestWorkflowRejectsWrongStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := NewSession("s1")

	if err := h.workflow.SubmitCode(ctx, s, "123456"); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
	if err := h.workflow.Back(s); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep for back from email entry, got %v", err)
	}

	done := &Session{ID: "s2", Step: StepComplete}
	if err := h.workflow.SubmitEmail(ctx, done, "alice@example.com"); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("complete is terminal, got %v", err)
	}
	if err := h.workflow.Back(done); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("complete is terminal, got %v", err)
	}
}

func TestWorkflowRejectsConcurrentSubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.sender.block = make(chan struct{})
	s := NewSession("s1")

	first := make(chan error, 1)
	go func() {
		first <- h.workflow.SubmitEmail(ctx, s, "alice@example.com")
	}()

	// Wait until the first submission holds the session.
	deadline := time.Now().Add(2 * time.Second)
	for !s.inFlight.Load() {
		if time.Now().After(deadline) {
			t.Fatal("first submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.workflow.SubmitEmail(ctx, s, "alice@example.com"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := h.workflow.Back(s); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for back, got %v", err)
	}

	close(h.sender.block)
	if err := <-first; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if s.Step != StepCodeEntry {
		t.Fatalf("expected code entry, got %s", s.Step)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: validation.ErrPasswordNoNumber, want: "Password must contain at least one number"},
		{err: repository.ErrCodeNotFound, want: "Verification code not found, please request a new one"},
		{err: repository.ErrCodeExpired, want: "Verification code has expired, please request a new one"},
		{err: ErrBusy, want: "Your previous request is still being processed"},
		{err: errors.New("dynamodb: throttled"), want: "Something went wrong, please try again"},
	}

	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Fatalf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
