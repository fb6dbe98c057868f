package reset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionStore keeps reset sessions in Redis between HTTP requests.
// Completed sessions are removed.
type SessionStore struct {
	client  redis.UniversalClient
	ttl     time.Duration
	lockTTL time.Duration
	logger  *logrus.Logger
}

func NewSessionStore(client redis.UniversalClient, ttl, lockTTL time.Duration, logger *logrus.Logger) *SessionStore {
	return &SessionStore{
		client:  client,
		ttl:     ttl,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("reset_session:%s", id)
}

func sessionLockKey(id string) string {
	return fmt.Sprintf("reset_session_lock:%s", id)
}

func (s *SessionStore) Create(ctx context.Context) (*Session, error) {
	session := NewSession(uuid.New().String())
	session.UpdatedAt = time.Now().UTC()
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load reset session")
		return nil, fmt.Errorf("failed to load reset session: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reset session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	key := sessionKey(session.ID)

	if session.Step == StepComplete {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete reset session: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal reset session: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to save reset session")
		return fmt.Errorf("failed to save reset session: %w", err)
	}
	return nil
}

// Lock claims the session for one submission across server instances.
// It returns ErrBusy while another holder has it.
func (s *SessionStore) Lock(ctx context.Context, id string) (func(), error) {
	token := uuid.New().String()
	key := sessionLockKey(id)

	ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to lock reset session: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	unlock := func() {
		if err := unlockScript.Run(context.Background(), s.client, []string{key}, token).Err(); err != nil {
			s.logger.WithError(err).WithField("session_id", id).Warn("Failed to release reset session lock")
		}
	}
	return unlock, nil
}
