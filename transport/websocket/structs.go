package websocket

import (
	"encoding/json"

	"github.com/keyholdgame/keyhold-backend/internal/entity"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload carries both request fields (game id, slot, key transitions) and
// response fields (state, advisory error) for every action.
type Payload struct {
	GameID string     `json:"game_id,omitempty"`
	Slot   *int       `json:"slot,omitempty"`
	Name   string     `json:"name,omitempty"`
	Key    string     `json:"key,omitempty"`
	Down   *bool      `json:"down,omitempty"`
	Game   *GameState `json:"game,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// GameState is the read-only status surface pushed to rendering clients:
// the full snapshot plus the derived pool and pressed-set sizes.
type GameState struct {
	*entity.Game
	PoolSize     int `json:"pool_size"`
	PressedCount int `json:"pressed_count"`
}

func newGameState(game *entity.Game) *GameState {
	if game == nil {
		return nil
	}

	return &GameState{
		Game:         game,
		PoolSize:     len(game.AvailableKeys()),
		PressedCount: game.Pressed.Len(),
	}
}
