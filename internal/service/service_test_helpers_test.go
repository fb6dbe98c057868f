package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nextai/nextai/internal/config"
	"github.com/nextai/nextai/internal/dynamotest"
	"github.com/nextai/nextai/internal/identity"
	"github.com/nextai/nextai/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	testTable  = "NextAITest"
	testSecret = "0123456789abcdef0123456789abcdef"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	dynamo   *dynamotest.Client
	redis    *redis.Client
	accounts *repository.AccountRepository
	profiles *repository.ProfileRepository
	chats    *repository.ChatRepository
	provider *identity.Provider
	mailer   *recordingMailer
	jwt      *JWTService
	refresh  *RefreshTokenService
	gateway  *CredentialGateway
	logger   *logrus.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := newTestLogger()
	_, rdb := newTestRedis(t)
	dyn := dynamotest.New()

	jwtService, err := NewJWTService(&config.JWTConfig{
		SecretKey:     testSecret,
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
	}, logger)
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}

	accounts := repository.NewAccountRepository(dyn, testTable, logger)
	mailer := &recordingMailer{}
	provider := identity.NewProvider(accounts, mailer, bcrypt.MinCost, logger)
	refresh := NewRefreshTokenService(rdb, logger)

	return &testEnv{
		dynamo:   dyn,
		redis:    rdb,
		accounts: accounts,
		profiles: repository.NewProfileRepository(dyn, testTable, logger),
		chats:    repository.NewChatRepository(dyn, testTable, logger),
		provider: provider,
		mailer:   mailer,
		jwt:      jwtService,
		refresh:  refresh,
		gateway:  NewCredentialGateway(provider, jwtService, refresh, logger),
		logger:   logger,
	}
}
