package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"
	"agromart/pkg/token"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sessions issues signed tokens backed by a Redis record, so a token stops
// working as soon as its session is revoked.
type Sessions struct {
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(rdb *redis.Client, secret []byte, ttl time.Duration) *Sessions {
	return &Sessions{rdb: rdb, secret: secret, ttl: ttl, now: time.Now}
}

func sessionKey(sid string) string {
	return fmt.Sprintf("session:%s", sid)
}

func (s *Sessions) Create(ctx context.Context, u *models.User) (string, error) {
	sid := uuid.NewString()
	if err := s.rdb.Set(ctx, sessionKey(sid), u.ID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token.Issue(s.secret, u.ID, string(u.Role), sid, s.ttl, s.now())
}

func (s *Sessions) Validate(ctx context.Context, raw string) (Actor, error) {
	claims, err := token.Parse(s.secret, raw)
	if err != nil {
		return Actor{}, apperr.ErrUnauthorized
	}
	owner, err := s.rdb.Get(ctx, sessionKey(claims.SessionID())).Result()
	if errors.Is(err, redis.Nil) {
		return Actor{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Actor{}, fmt.Errorf("load session: %w", err)
	}
	if owner != claims.UserID {
		return Actor{}, apperr.ErrUnauthorized
	}
	return Actor{UserID: claims.UserID, Role: models.Role(claims.Role)}, nil
}

func (s *Sessions) Revoke(ctx context.Context, raw string) error {
	claims, err := token.Parse(s.secret, raw)
	if err != nil {
		return apperr.ErrUnauthorized
	}
	return s.rdb.Del(ctx, sessionKey(claims.SessionID())).Err()
}
