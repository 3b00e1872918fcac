package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/keyholdgame/keyhold-backend/internal/entity"
	"github.com/keyholdgame/keyhold-backend/internal/repository"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

type sessionRepo interface {
	Bind(ctx context.Context, sessionID, gameID string) error
	GameID(ctx context.Context, sessionID string) (string, error)
	Unbind(ctx context.Context, sessionID string) error
}

// room pairs a live game with the lock that serializes every mutation to it.
// One lock per game is the single ordering authority the core relies on:
// key events, lobby commands and assignments are applied one at a time, so
// each elimination pass sees one consistent pressed-set snapshot.
type room struct {
	mu   sync.Mutex
	game *entity.Game
}

// GameManager hosts the live game rooms, serializes access to each and
// write-through persists snapshots so matches survive a restart.
type GameManager struct {
	logger      *slog.Logger
	gameRepo    gameRepo
	sessionRepo sessionRepo

	mu    sync.Mutex
	rooms map[string]*room
}

func NewGameManager(logger *slog.Logger, gameRepo gameRepo, sessionRepo sessionRepo) *GameManager {
	return &GameManager{
		logger:      logger.With("component", "game_manager"),
		gameRepo:    gameRepo,
		sessionRepo: sessionRepo,
		rooms:       make(map[string]*room),
	}
}

// CreateGame returns the game already bound to the session if it still
// exists, otherwise creates a fresh lobby and binds the session to it.
func (that *GameManager) CreateGame(ctx context.Context, sessionID string) (*entity.Game, error) {
	if gameID, err := that.sessionRepo.GameID(ctx, sessionID); err == nil {
		if game, stateErr := that.GameState(ctx, gameID); stateErr == nil {
			return game, nil
		}
	}

	game := entity.NewGame(uuid.NewString())

	that.mu.Lock()
	that.rooms[game.ID] = &room{game: game}
	that.mu.Unlock()

	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if err := that.sessionRepo.Bind(ctx, sessionID, game.ID); err != nil {
		return nil, fmt.Errorf("failed to bind session: %w", err)
	}

	that.logger.Info("game created", "game_id", game.ID)

	return game.Snapshot(), nil
}

// ConnectToGame attaches a session to an existing game, e.g. a spectator
// screen or a host reconnecting from another tab.
func (that *GameManager) ConnectToGame(ctx context.Context, gameID, sessionID string) (*entity.Game, error) {
	game, err := that.GameState(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if err = that.sessionRepo.Bind(ctx, sessionID, game.ID); err != nil {
		return nil, fmt.Errorf("failed to bind session: %w", err)
	}

	return game, nil
}

// GameState returns a detached snapshot of the game.
func (that *GameManager) GameState(ctx context.Context, gameID string) (*entity.Game, error) {
	rm, err := that.room(ctx, gameID)
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	return rm.game.Snapshot(), nil
}

// SessionGameID resolves which game a session is attached to.
func (that *GameManager) SessionGameID(ctx context.Context, sessionID string) (string, error) {
	gameID, err := that.sessionRepo.GameID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}

	return gameID, nil
}

func (that *GameManager) JoinSlot(ctx context.Context, gameID string, slot int) (*entity.Game, error) {
	return that.withGame(ctx, gameID, func(game *entity.Game) error {
		return game.Join(slot)
	})
}

func (that *GameManager) LeaveSlot(ctx context.Context, gameID string, slot int) (*entity.Game, error) {
	return that.withGame(ctx, gameID, func(game *entity.Game) error {
		return game.Leave(slot)
	})
}

func (that *GameManager) RenameSlot(ctx context.Context, gameID string, slot int, name string) (*entity.Game, error) {
	return that.withGame(ctx, gameID, func(game *entity.Game) error {
		return game.Rename(slot, name)
	})
}

func (that *GameManager) StartGame(ctx context.Context, gameID string) (*entity.Game, error) {
	return that.withGame(ctx, gameID, func(game *entity.Game) error {
		return game.Start()
	})
}

func (that *GameManager) ResetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	return that.withGame(ctx, gameID, func(game *entity.Game) error {
		game.Reset()
		return nil
	})
}

func (that *GameManager) AssignNextKey(ctx context.Context, gameID string) (*entity.Game, error) {
	return that.withGame(ctx, gameID, func(game *entity.Game) error {
		return game.AssignNext()
	})
}

// ApplyKeyEvent feeds one normalized key transition into the game.
func (that *GameManager) ApplyKeyEvent(ctx context.Context, gameID, rawKey string, down bool) (*entity.Game, error) {
	key, err := entity.ParseKey(rawKey)
	if err != nil {
		return nil, err
	}

	return that.withGame(ctx, gameID, func(game *entity.Game) error {
		if game.HandleKey(key, down) {
			that.logger.Debug("key transition", "game_id", gameID, "key", key, "down", down, "pressed", game.Pressed.Len())
		}
		return nil
	})
}

// withGame runs op under the game's lock and write-through persists the
// result. Advisory rejections from the core leave the state untouched but
// are still returned so transports can surface them; the snapshot comes
// back either way.
func (that *GameManager) withGame(ctx context.Context, gameID string, op func(game *entity.Game) error) (*entity.Game, error) {
	rm, err := that.room(ctx, gameID)
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	opErr := op(rm.game)

	// A redis hiccup must not kill live play; the snapshot is a recovery
	// convenience, the in-memory room stays authoritative.
	if err = that.gameRepo.CreateOrUpdate(ctx, rm.game); err != nil {
		that.logger.Error("failed to persist game", "game_id", gameID, "error", err)
	}

	return rm.game.Snapshot(), opErr
}

// room returns the live room, reviving it from the snapshot store after a
// restart if needed.
func (that *GameManager) room(ctx context.Context, gameID string) (*room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if rm, ok := that.rooms[gameID]; ok {
		return rm, nil
	}

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to revive game: %w", err)
	}

	rm := &room{game: game}
	that.rooms[gameID] = rm

	return rm, nil
}
