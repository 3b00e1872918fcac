package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyholdgame/keyhold-backend/internal/apperror"
)

func newLobby(t *testing.T, slots ...int) *Game {
	t.Helper()

	game := NewGame("game-1")
	for _, slot := range slots {
		require.NoError(t, game.Join(slot))
	}

	return game
}

// pressAll pushes every key the player holds into the pressed set.
func pressAll(game *Game, player *Player) {
	for _, key := range player.Keys {
		game.HandleKey(key, true)
	}
}

// startHolding starts a game with players in slots 0..count-1, assigning one
// key per player and pressing each key as soon as it is handed out, the way
// a real round plays out.
func startHolding(t *testing.T, count int) *Game {
	t.Helper()

	slots := make([]int, count)
	for i := range slots {
		slots[i] = i
	}

	game := newLobby(t, slots...)
	require.NoError(t, game.Start())
	pressAll(game, game.Players[0])

	for i := 1; i < count; i++ {
		require.NoError(t, game.AssignNext())
		pressAll(game, game.Players[i])
	}

	return game
}

func TestGame_Join(t *testing.T) {
	t.Run("Occupies a free slot in the lobby", func(t *testing.T) {
		// Given: an empty lobby
		game := NewGame("game-1")

		// When: a player joins slot 2
		err := game.Join(2)

		// Then: the roster holds one alive player with no keys
		require.NoError(t, err)
		require.Len(t, game.Players, 1)
		assert.Equal(t, 2, game.Players[0].Slot)
		assert.Equal(t, "Player 3", game.Players[0].Name)
		assert.True(t, game.Players[0].Alive)
		assert.Empty(t, game.Players[0].Keys)
	})

	t.Run("Keeps the roster ordered by slot", func(t *testing.T) {
		game := newLobby(t, 3, 0, 2)

		slots := make([]int, 0, len(game.Players))
		for _, player := range game.Players {
			slots = append(slots, player.Slot)
		}

		assert.Equal(t, []int{0, 2, 3}, slots)
	})

	t.Run("Rejects an occupied slot", func(t *testing.T) {
		game := newLobby(t, 1)

		err := game.Join(1)

		assert.ErrorIs(t, err, apperror.ErrSlotOccupied)
		assert.Len(t, game.Players, 1)
	})

	t.Run("Rejects an out-of-range slot", func(t *testing.T) {
		game := NewGame("game-1")

		assert.ErrorIs(t, game.Join(-1), apperror.ErrSlotOutOfRange)
		assert.ErrorIs(t, game.Join(MaxSlots), apperror.ErrSlotOutOfRange)
		assert.Empty(t, game.Players)
	})

	t.Run("Rejects joining outside the lobby", func(t *testing.T) {
		// Given: a running game with two players
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())

		// When: a third player tries to join mid-game
		err := game.Join(2)

		// Then: the request is rejected and the roster is unchanged
		assert.ErrorIs(t, err, apperror.ErrGameInProgress)
		assert.Len(t, game.Players, 2)
	})
}

func TestGame_Leave(t *testing.T) {
	t.Run("Frees an occupied slot", func(t *testing.T) {
		game := newLobby(t, 0, 1)

		require.NoError(t, game.Leave(0))

		require.Len(t, game.Players, 1)
		assert.Equal(t, 1, game.Players[0].Slot)
	})

	t.Run("Rejects leaving an empty slot", func(t *testing.T) {
		game := newLobby(t, 0)

		assert.ErrorIs(t, game.Leave(3), apperror.ErrSlotEmpty)
	})

	t.Run("Rejects leaving outside the lobby", func(t *testing.T) {
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())

		assert.ErrorIs(t, game.Leave(0), apperror.ErrGameInProgress)
	})
}

func TestGame_Rename(t *testing.T) {
	t.Run("Changes the display name in any phase", func(t *testing.T) {
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())

		require.NoError(t, game.Rename(1, "Lena"))

		assert.Equal(t, "Lena", game.Players[1].Name)
	})

	t.Run("Keeps the old name when the new one is blank", func(t *testing.T) {
		game := newLobby(t, 0)

		require.NoError(t, game.Rename(0, "   "))

		assert.Equal(t, "Player 1", game.Players[0].Name)
	})

	t.Run("Rejects renaming an empty slot", func(t *testing.T) {
		game := newLobby(t, 0)

		assert.ErrorIs(t, game.Rename(2, "Ghost"), apperror.ErrSlotEmpty)
	})
}

func TestGame_Start(t *testing.T) {
	t.Run("Moves to playing and assigns the opening key to the lowest slot", func(t *testing.T) {
		// Given: a lobby with two players
		game := newLobby(t, 0, 1)

		// When: the game starts
		err := game.Start()

		// Then: phase is playing, round one, and slot 0 holds exactly one key
		require.NoError(t, err)
		assert.Equal(t, PhasePlaying, game.Phase)
		assert.Equal(t, 1, game.Round)
		require.Len(t, game.Players[0].Keys, 1)
		assert.Empty(t, game.Players[1].Keys)
		assert.Contains(t, game.Message, game.Players[0].Name)
	})

	t.Run("Rejects starting with fewer than two players", func(t *testing.T) {
		game := newLobby(t, 0)

		err := game.Start()

		assert.ErrorIs(t, err, apperror.ErrNotEnoughPlayers)
		assert.Equal(t, PhaseLobby, game.Phase)
	})

	t.Run("Rejects starting twice", func(t *testing.T) {
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())

		assert.ErrorIs(t, game.Start(), apperror.ErrGameInProgress)
	})
}

func TestGame_AssignNext(t *testing.T) {
	t.Run("Visits every active player once per cycle in slot order", func(t *testing.T) {
		// Given: a running game with three players; start assigned slot 0
		game := newLobby(t, 0, 1, 2)
		require.NoError(t, game.Start())

		// When: two more assignments complete the cycle
		require.NoError(t, game.AssignNext())
		require.NoError(t, game.AssignNext())

		// Then: each player holds exactly one key and the cycle restarts at slot 0
		for _, player := range game.Players {
			assert.Len(t, player.Keys, 1, "slot %d", player.Slot)
		}
		assert.Equal(t, 3, game.Round)
		assert.Equal(t, 0, game.CurrentPlayer().Slot)
	})

	t.Run("Never hands out the same key twice", func(t *testing.T) {
		// Given: a running game where every key ends up assigned
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())

		for len(game.AvailableKeys()) > 0 {
			require.NoError(t, game.AssignNext())
		}

		// Then: all 37 keys are owned by exactly one player
		seen := NewKeySet()
		for _, player := range game.Players {
			for _, key := range player.Keys {
				assert.True(t, seen.Add(key), "key %s assigned twice", key)
			}
		}
		assert.Equal(t, AlphabetSize, seen.Len())
	})

	t.Run("Reports an empty pool without touching the roster", func(t *testing.T) {
		// Given: a running game with no keys left
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())
		for len(game.AvailableKeys()) > 0 {
			require.NoError(t, game.AssignNext())
		}
		round := game.Round
		held := []int{len(game.Players[0].Keys), len(game.Players[1].Keys)}

		// When: yet another assignment is requested
		err := game.AssignNext()

		// Then: advisory error, message set, phase and roster unchanged
		assert.ErrorIs(t, err, apperror.ErrNoKeysLeft)
		assert.Equal(t, PhasePlaying, game.Phase)
		assert.Equal(t, round, game.Round)
		assert.Equal(t, held[0], len(game.Players[0].Keys))
		assert.Equal(t, held[1], len(game.Players[1].Keys))
		assert.Contains(t, game.Message, "No unassigned keys left")
	})

	t.Run("Rejects assignment before the game starts", func(t *testing.T) {
		game := newLobby(t, 0, 1)

		assert.ErrorIs(t, game.AssignNext(), apperror.ErrGameIsNotStarted)
	})

	t.Run("Skips eliminated players", func(t *testing.T) {
		// Given: three players, each holding one pressed key
		game := startHolding(t, 3)

		// When: slot 0 releases their key
		game.HandleKey(game.Players[0].Keys[0], false)

		// Then: the next two assignments rotate over slots 1 and 2 only
		require.False(t, game.Players[0].Alive)
		before := []int{len(game.Players[1].Keys), len(game.Players[2].Keys)}
		require.NoError(t, game.AssignNext())
		require.NoError(t, game.AssignNext())
		assert.Equal(t, before[0]+1, len(game.Players[1].Keys))
		assert.Equal(t, before[1]+1, len(game.Players[2].Keys))
		assert.Len(t, game.Players[0].Keys, 1)
	})
}

func TestGame_HandleKey(t *testing.T) {
	t.Run("Ignores redundant downs and spurious ups", func(t *testing.T) {
		game := NewGame("game-1")

		assert.True(t, game.HandleKey("A", true))
		assert.False(t, game.HandleKey("A", true))
		assert.False(t, game.HandleKey("B", false))
		assert.Equal(t, 1, game.Pressed.Len())
	})

	t.Run("Tracks the rollover peak monotonically", func(t *testing.T) {
		// Given: three keys held at once
		game := NewGame("game-1")
		game.HandleKey("A", true)
		game.HandleKey("B", true)
		game.HandleKey("C", true)
		require.Equal(t, 3, game.Peak)

		// When: everything is released and fewer keys come back down
		game.HandleKey("A", false)
		game.HandleKey("B", false)
		game.HandleKey("C", false)
		game.HandleKey("D", true)

		// Then: the peak holds at its maximum
		assert.Equal(t, 3, game.Peak)
		assert.Equal(t, 1, game.Pressed.Len())
	})

	t.Run("Leaves the roster alone outside the playing phase", func(t *testing.T) {
		game := newLobby(t, 0, 1)

		game.HandleKey("A", true)
		game.HandleKey("A", false)

		for _, player := range game.Players {
			assert.True(t, player.Alive)
		}
		assert.Equal(t, PhaseLobby, game.Phase)
	})
}

func TestGame_Elimination(t *testing.T) {
	t.Run("Releasing an assigned key eliminates its holder and crowns the survivor", func(t *testing.T) {
		// Given: two players; slot 0 holds the opening key down
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())
		assigned := game.Players[0].Keys[0]
		game.HandleKey(assigned, true)
		require.True(t, game.Players[0].Alive)
		require.Equal(t, PhasePlaying, game.Phase)

		// When: slot 0 lets go
		game.HandleKey(assigned, false)

		// Then: slot 0 is out, slot 1 wins, the game is finished
		assert.False(t, game.Players[0].Alive)
		assert.Equal(t, PhaseFinished, game.Phase)
		assert.Equal(t, 1, game.Winner)
		assert.Contains(t, game.Message, game.Players[1].Name)
	})

	t.Run("Never eliminates a player who has no keys yet", func(t *testing.T) {
		// Given: a fresh start; only slot 0 has a key, nothing is pressed
		game := newLobby(t, 0, 1, 2)
		require.NoError(t, game.Start())
		pressAll(game, game.Players[0])

		// When: an unrelated key bounces
		free := game.AvailableKeys()[0]
		game.HandleKey(free, true)

		// Then: the empty-handed players are still in
		assert.True(t, game.Players[1].Alive)
		assert.True(t, game.Players[2].Alive)
	})

	t.Run("Eliminates all defaulting players in the same pass", func(t *testing.T) {
		// Given: three players with one key each, none pressed yet
		game := newLobby(t, 0, 1, 2)
		require.NoError(t, game.Start())
		require.NoError(t, game.AssignNext())
		require.NoError(t, game.AssignNext())
		require.Equal(t, PhasePlaying, game.Phase)

		// When: slot 2 pressing their own key triggers a single reaction
		pressAll(game, game.Players[2])

		// Then: slots 0 and 1 fall together and slot 2 wins
		assert.False(t, game.Players[0].Alive)
		assert.False(t, game.Players[1].Alive)
		assert.Equal(t, PhaseFinished, game.Phase)
		assert.Equal(t, 2, game.Winner)
	})

	t.Run("Finishes without a winner when everyone defaults at once", func(t *testing.T) {
		// Given: two players with one key each, neither pressed
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())
		require.NoError(t, game.AssignNext())

		// When: an unassigned key triggers the reaction
		free := game.AvailableKeys()[0]
		game.HandleKey(free, true)

		// Then: the game finishes as a draw rather than crashing
		assert.Equal(t, PhaseFinished, game.Phase)
		assert.Equal(t, NoWinner, game.Winner)
		assert.True(t, game.Draw)
	})

	t.Run("Keeps an eliminated player's keys retired from the pool", func(t *testing.T) {
		// Given: slot 0 eliminated while holding the opening key
		game := newLobby(t, 0, 1, 2)
		require.NoError(t, game.Start())
		retired := game.Players[0].Keys[0]
		free := game.AvailableKeys()[0]
		game.HandleKey(free, true)
		require.False(t, game.Players[0].Alive)

		// Then: their key never re-enters the pool
		assert.NotContains(t, game.AvailableKeys(), retired)
		assert.Len(t, game.Players[0].Keys, 1)
	})

	t.Run("Stops judging once the game is finished", func(t *testing.T) {
		// Given: a finished game
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())
		assigned := game.Players[0].Keys[0]
		game.HandleKey(assigned, true)
		game.HandleKey(assigned, false)
		require.Equal(t, PhaseFinished, game.Phase)
		winner := game.Winner

		// When: keys keep changing afterwards
		game.HandleKey("A", true)
		game.HandleKey("A", false)

		// Then: tracking continues passively with no game effect
		assert.Equal(t, PhaseFinished, game.Phase)
		assert.Equal(t, winner, game.Winner)
		assert.True(t, game.Players[1].Alive)
	})

	t.Run("Normalizes the turn pointer after an elimination", func(t *testing.T) {
		// Given: three players each holding their key, pointer back at slot 0
		game := startHolding(t, 3)
		require.Equal(t, 0, game.CurrentPlayer().Slot)

		// When: the current turn-holder drops out
		game.HandleKey(game.Players[0].Keys[0], false)

		// Then: the pointer addresses a valid alive player without advancing a turn
		require.Equal(t, PhasePlaying, game.Phase)
		current := game.CurrentPlayer()
		require.NotNil(t, current)
		assert.True(t, current.Alive)
	})
}

func TestGame_Reset(t *testing.T) {
	t.Run("Clears the roster and returns to the lobby from any phase", func(t *testing.T) {
		// Given: a finished game with a recorded peak
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())
		assigned := game.Players[0].Keys[0]
		game.HandleKey(assigned, true)
		game.HandleKey(assigned, false)
		require.Equal(t, PhaseFinished, game.Phase)

		// When: the game is reset
		game.Reset()

		// Then: empty lobby, cleared round state, physical key stats intact
		assert.Equal(t, PhaseLobby, game.Phase)
		assert.Empty(t, game.Players)
		assert.Equal(t, 0, game.Round)
		assert.Equal(t, NoWinner, game.Winner)
		assert.Empty(t, game.Message)
		assert.Equal(t, 1, game.Peak)
	})
}

func TestGame_Snapshot(t *testing.T) {
	t.Run("Detaches the copy from later mutations", func(t *testing.T) {
		// Given: a running game
		game := newLobby(t, 0, 1)
		require.NoError(t, game.Start())

		// When: a snapshot is taken and the game keeps moving
		snap := game.Snapshot()
		require.NoError(t, game.AssignNext())
		game.HandleKey("A", true)

		// Then: the snapshot still shows the earlier state
		assert.Empty(t, snap.Players[1].Keys)
		assert.Equal(t, 0, snap.Pressed.Len())
		assert.Equal(t, 1, snap.Round)
	})
}
