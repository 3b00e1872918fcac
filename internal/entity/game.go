package entity

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/keyholdgame/keyhold-backend/internal/apperror"
)

const (
	PhaseLobby    = "lobby"
	PhasePlaying  = "playing"
	PhaseFinished = "finished"
)

// NoWinner marks a game that has no decided winner, including a draw.
const NoWinner = -1

// Game is the authoritative state of one Keyhold match: the lobby roster,
// the round/turn counters, the set of physically held keys and the rollover
// peak. All mutations are synchronous; callers serialize access per game.
type Game struct {
	ID      string    `json:"id"`
	Phase   string    `json:"phase"`
	Round   int       `json:"round"`
	Turn    int       `json:"turn"`
	Players []*Player `json:"players"`
	Pressed KeySet    `json:"pressed"`
	Peak    int       `json:"peak"`
	Winner  int       `json:"winner"`
	Draw    bool      `json:"draw,omitempty"`
	Message string    `json:"message,omitempty"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:      id,
		Phase:   PhaseLobby,
		Players: []*Player{},
		Pressed: NewKeySet(),
		Winner:  NoWinner,
	}
}

func (that *Game) IsLobby() bool {
	return that.Phase == PhaseLobby
}

func (that *Game) IsPlaying() bool {
	return that.Phase == PhasePlaying
}

func (that *Game) IsFinished() bool {
	return that.Phase == PhaseFinished
}

// Join occupies a lobby slot. Valid only in the lobby phase.
func (that *Game) Join(slot int) error {
	if err := that.confirmLobbyState(); err != nil {
		return err
	}

	if slot < 0 || slot >= MaxSlots {
		return fmt.Errorf("%w: slot %d", apperror.ErrSlotOutOfRange, slot)
	}

	if that.playerAt(slot) != nil {
		return fmt.Errorf("%w: slot %d", apperror.ErrSlotOccupied, slot)
	}

	that.Players = append(that.Players, NewPlayer(slot))
	that.sortPlayers()

	return nil
}

// Leave frees a lobby slot. Valid only in the lobby phase.
func (that *Game) Leave(slot int) error {
	if err := that.confirmLobbyState(); err != nil {
		return err
	}

	for i, player := range that.Players {
		if player.Slot == slot {
			that.Players = append(that.Players[:i], that.Players[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: slot %d", apperror.ErrSlotEmpty, slot)
}

// Rename changes a player's display name. Pure metadata, valid in any phase.
func (that *Game) Rename(slot int, name string) error {
	player := that.playerAt(slot)
	if player == nil {
		return fmt.Errorf("%w: slot %d", apperror.ErrSlotEmpty, slot)
	}

	if name = strings.TrimSpace(name); name != "" {
		player.Name = name
	}

	return nil
}

// Start moves the game from lobby to playing and assigns the opening key.
// It requires at least two joined players.
func (that *Game) Start() error {
	if err := that.confirmLobbyState(); err != nil {
		return err
	}

	if len(that.Players) < 2 {
		return apperror.ErrNotEnoughPlayers
	}

	for _, player := range that.Players {
		player.Alive = true
		player.Keys = []Key{}
	}

	that.Phase = PhasePlaying
	that.Round = 0
	that.Turn = 0
	that.Winner = NoWinner
	that.Draw = false

	// Opening assignment; the pool is full here, so this cannot fail.
	return that.AssignNext()
}

// Reset clears the roster and returns to the lobby. Valid in any phase.
// The pressed set and rollover peak track the physical keyboard and are
// left alone; keys may still be held when a new lobby forms.
func (that *Game) Reset() {
	that.Phase = PhaseLobby
	that.Players = []*Player{}
	that.Round = 0
	that.Turn = 0
	that.Winner = NoWinner
	that.Draw = false
	that.Message = ""
}

// AssignNext draws a random unassigned key and binds it to the player whose
// turn it is, then advances the turn pointer. Safe to call repeatedly.
func (that *Game) AssignNext() error {
	switch {
	case that.IsLobby():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	}

	active := that.ActivePlayers()
	if len(active) == 0 {
		// Unreachable while playing: the judge finishes the game before
		// the active set can empty out.
		return apperror.ErrNoActivePlayers
	}

	pool := that.AvailableKeys()
	if len(pool) == 0 {
		that.Message = "No unassigned keys left, hold on to what you have"
		return apperror.ErrNoKeysLeft
	}

	key := pool[rand.Intn(len(pool))] //nolint: gosec // fairness only, not security

	holder := active[that.Turn%len(active)]
	holder.Keys = append(holder.Keys, key)

	that.Round++
	that.Turn = (that.Turn%len(active) + 1) % len(active)
	that.Message = fmt.Sprintf("Round %d: %s now holds %s (%d keys)", that.Round, holder.Name, key, len(holder.Keys))

	return nil
}

// HandleKey applies one normalized key transition to the pressed set and
// reports whether membership actually changed. Redundant downs and ups are
// no-ops. Every real change updates the rollover peak and, while playing,
// runs one elimination pass against the new snapshot.
func (that *Game) HandleKey(key Key, down bool) bool {
	var changed bool
	if down {
		changed = that.Pressed.Add(key)
	} else {
		changed = that.Pressed.Remove(key)
	}

	if !changed {
		return false
	}

	if held := that.Pressed.Len(); held > that.Peak {
		that.Peak = held
	}

	if that.IsPlaying() {
		that.judge()
	}

	return true
}

// judge runs one elimination pass: every alive player with assigned keys is
// checked against the same pressed-set snapshot, so eliminations within one
// pass are simultaneous. Afterwards it settles victory or the no-survivor
// draw guard.
func (that *Game) judge() {
	var out []*Player
	for _, player := range that.ActivePlayers() {
		if len(player.Keys) == 0 {
			continue
		}
		if !player.HoldsAll(that.Pressed) {
			out = append(out, player)
		}
	}

	if len(out) == 0 {
		return
	}

	names := make([]string, 0, len(out))
	for _, player := range out {
		player.Alive = false
		names = append(names, player.Name)
	}
	that.Message = fmt.Sprintf("%s let go and %s out", strings.Join(names, ", "), pluralIs(len(out)))

	switch active := that.ActivePlayers(); len(active) {
	case 1:
		that.Phase = PhaseFinished
		that.Winner = active[0].Slot
		that.Message = fmt.Sprintf("%s wins!", active[0].Name)
	case 0:
		// Keys are exclusively owned, so everyone dropping at once should
		// not happen. Finish without a winner instead of faulting.
		that.Phase = PhaseFinished
		that.Draw = true
		that.Message = "Everyone let go at once, nobody wins"
	}
}

// ActivePlayers returns the alive subset in ascending slot order.
func (that *Game) ActivePlayers() []*Player {
	active := make([]*Player, 0, len(that.Players))
	for _, player := range that.Players {
		if player.Alive {
			active = append(active, player)
		}
	}
	return active
}

// CurrentPlayer returns the player the turn pointer addresses, or nil when
// nobody is active. The pointer is normalized on read, never stored stale.
func (that *Game) CurrentPlayer() *Player {
	active := that.ActivePlayers()
	if len(active) == 0 {
		return nil
	}
	return active[that.Turn%len(active)]
}

// AvailableKeys returns the alphabet minus every key ever assigned this
// match. Assigned keys stay retired even after their owner is eliminated.
func (that *Game) AvailableKeys() []Key {
	assigned := NewKeySet()
	for _, player := range that.Players {
		for _, key := range player.Keys {
			assigned.Add(key)
		}
	}

	pool := make([]Key, 0, AlphabetSize)
	for _, key := range Alphabet() {
		if !assigned.Has(key) {
			pool = append(pool, key)
		}
	}
	return pool
}

// Snapshot returns a deep copy safe to hand to transports while the
// original keeps mutating under its own lock.
func (that *Game) Snapshot() *Game {
	players := make([]*Player, len(that.Players))
	for i, player := range that.Players {
		players[i] = player.clone()
	}

	clone := *that
	clone.Players = players
	clone.Pressed = that.Pressed.Clone()

	return &clone
}

func (that *Game) playerAt(slot int) *Player {
	for _, player := range that.Players {
		if player.Slot == slot {
			return player
		}
	}
	return nil
}

func (that *Game) sortPlayers() {
	sort.Slice(that.Players, func(i, j int) bool {
		return that.Players[i].Slot < that.Players[j].Slot
	})
}

func (that *Game) confirmLobbyState() error {
	switch {
	case that.IsPlaying():
		return apperror.ErrGameInProgress
	case that.IsFinished():
		return apperror.ErrGameFinished
	default:
		return nil
	}
}

func pluralIs(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}
