package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keyholdgame/keyhold-backend/internal/entity"
	"github.com/keyholdgame/keyhold-backend/internal/repository"
)

// handleConnect resolves the session to its running game, if any, so a
// reloading host lands back in their match.
func (that *Server) handleConnect(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleConnect")

	gameID, err := that.manager.SessionGameID(ctx, cl.sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			log.Error("failed to resolve session", "error", err)
		}
		cl.send <- &Message{Action: msg.Action}
		return nil
	}

	game, err := that.manager.GameState(ctx, gameID)
	if err != nil {
		cl.send <- &Message{Action: msg.Action}
		return nil
	}

	that.subscribe(cl, game.ID)
	cl.send <- resultMessage(msg.Action, game, "")

	log.Info("session reattached", "game_id", game.ID)

	return nil
}

func (that *Server) handleNewGame(ctx context.Context, cl *client, msg *Message) error {
	game, err := that.manager.CreateGame(ctx, cl.sessionID)
	if err != nil {
		cl.send <- errorMessage(msg.Action, "failed to create a new game")
		return fmt.Errorf("failed to create game: %w", err)
	}

	that.subscribe(cl, game.ID)
	cl.send <- resultMessage(msg.Action, game, "")

	return nil
}

func (that *Server) handleJoinGame(ctx context.Context, cl *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.GameID == "" {
		cl.send <- errorMessage(msg.Action, "game_id is required")
		return nil
	}

	game, err := that.manager.ConnectToGame(ctx, payload.GameID, cl.sessionID)
	if err != nil {
		cl.send <- errorMessage(msg.Action, "failed to join the game")
		return fmt.Errorf("failed to connect to game: %w", err)
	}

	that.subscribe(cl, game.ID)
	cl.send <- resultMessage(msg.Action, game, "")

	return nil
}

func (that *Server) handleStart(ctx context.Context, cl *client, msg *Message) error {
	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.StartGame(ctx, gameID)
	})
}

func (that *Server) handleReset(ctx context.Context, cl *client, msg *Message) error {
	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.ResetGame(ctx, gameID)
	})
}

// handleAssign is the manual round trigger.
func (that *Server) handleAssign(ctx context.Context, cl *client, msg *Message) error {
	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.AssignNextKey(ctx, gameID)
	})
}

func (that *Server) handleState(ctx context.Context, cl *client, msg *Message) error {
	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.GameState(ctx, gameID)
	})
}

func (that *Server) handleSlotJoin(ctx context.Context, cl *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Slot == nil {
		cl.send <- errorMessage(msg.Action, "slot is required")
		return nil
	}

	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.JoinSlot(ctx, gameID, *payload.Slot)
	})
}

func (that *Server) handleSlotLeave(ctx context.Context, cl *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Slot == nil {
		cl.send <- errorMessage(msg.Action, "slot is required")
		return nil
	}

	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.LeaveSlot(ctx, gameID, *payload.Slot)
	})
}

func (that *Server) handleSlotRename(ctx context.Context, cl *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Slot == nil {
		cl.send <- errorMessage(msg.Action, "slot is required")
		return nil
	}

	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.RenameSlot(ctx, gameID, *payload.Slot, payload.Name)
	})
}

// handleKey feeds one normalized key transition into the attached game.
func (that *Server) handleKey(ctx context.Context, cl *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Key == "" || payload.Down == nil {
		cl.send <- errorMessage(msg.Action, "key and down are required")
		return nil
	}

	return that.runCommand(cl, msg.Action, func(gameID string) (*entity.Game, error) {
		return that.manager.ApplyKeyEvent(ctx, gameID, payload.Key, *payload.Down)
	})
}

// runCommand executes one game command for the client's attached game.
// Rejections are advisory: the client gets the reason and the unchanged
// state; accepted commands are answered and broadcast to the whole room.
func (that *Server) runCommand(cl *client, action string, op func(gameID string) (*entity.Game, error)) error {
	gameID := cl.game()
	if gameID == "" {
		cl.send <- errorMessage(action, "no game attached, send game:new or game:join first")
		return nil
	}

	game, err := op(gameID)
	if err != nil {
		if game == nil {
			cl.send <- errorMessage(action, err.Error())
		} else {
			cl.send <- resultMessage(action, game, err.Error())
		}
		return nil
	}

	cl.send <- resultMessage(action, game, "")
	that.broadcast(gameID, game)

	return nil
}

func decodePayload(msg *Message) (*Payload, error) {
	payload := &Payload{}
	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return payload, nil
}
