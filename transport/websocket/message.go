package websocket

import (
	"encoding/json"

	"github.com/keyholdgame/keyhold-backend/internal/entity"
)

func mustPayload(payload Payload) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return data
}

// resultMessage answers the acted-on client: the fresh state plus, for
// rejected requests, the advisory text.
func resultMessage(action string, game *entity.Game, advisory string) *Message {
	return &Message{
		Action: action,
		Payload: mustPayload(Payload{
			Game:  newGameState(game),
			Error: advisory,
		}),
	}
}

// stateMessage is the push sent to every subscriber of a game.
func stateMessage(game *entity.Game) *Message {
	return &Message{
		Action:  "game:state",
		Payload: mustPayload(Payload{Game: newGameState(game)}),
	}
}

func errorMessage(action, text string) *Message {
	return &Message{
		Action:  action,
		Payload: mustPayload(Payload{Error: text}),
	}
}
