package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// sessionTTL bounds how long a browser session stays bound to its game.
const sessionTTL = 24 * time.Hour

// SessionRepository binds a client session cookie to the game it is attached
// to, so a reconnecting host picks up its running match.
type SessionRepository interface {
	Bind(ctx context.Context, sessionID, gameID string) error
	GameID(ctx context.Context, sessionID string) (string, error)
	Unbind(ctx context.Context, sessionID string) error
}

type dbSession struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) SessionRepository {
	return &dbSession{
		client: client,
	}
}

func (that *dbSession) Bind(ctx context.Context, sessionID, gameID string) error {
	if err := that.client.Set(ctx, "session:"+sessionID, gameID, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}

	return nil
}

func (that *dbSession) GameID(ctx context.Context, sessionID string) (string, error) {
	gameID, err := that.client.Get(ctx, "session:"+sessionID).Result()

	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to get session by ID: %w", err)
	}

	return gameID, nil
}

func (that *dbSession) Unbind(ctx context.Context, sessionID string) error {
	if err := that.client.Del(ctx, "session:"+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session by ID: %w", err)
	}

	return nil
}
