package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keyholdgame/keyhold-backend/internal/apperror"
	"github.com/keyholdgame/keyhold-backend/internal/entity"
)

// statusResponse mirrors the websocket state push for plain HTTP readers.
type statusResponse struct {
	*entity.Game
	PoolSize     int `json:"pool_size"`
	PressedCount int `json:"pressed_count"`
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// gameStateHandler exposes the read-only status surface for spectating or
// rendering layers that only poll.
func gameStateHandler(logger *slog.Logger, manager gameManager) http.HandlerFunc {
	log := logger.With("component", "rest")

	return func(w http.ResponseWriter, r *http.Request) {
		game, err := manager.GameState(r.Context(), r.PathValue("id"))
		if err != nil {
			if errors.Is(err, apperror.ErrGameNotFound) {
				http.Error(w, "game not found", http.StatusNotFound)
				return
			}

			log.Error("failed to get game state", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(statusResponse{
			Game:         game,
			PoolSize:     len(game.AvailableKeys()),
			PressedCount: game.Pressed.Len(),
		}); err != nil {
			log.Error("failed to encode game state", "error", err)
		}
	}
}
