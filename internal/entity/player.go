package entity

import "fmt"

const MaxSlots = 4

// slotColors are fixed per lobby slot so a player keeps their color for the session.
var slotColors = [MaxSlots]string{"red", "blue", "green", "yellow"}

type Player struct {
	Slot  int    `json:"slot"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Alive bool   `json:"alive"`
	Keys  []Key  `json:"keys"`
}

func NewPlayer(slot int) *Player {
	return &Player{
		Slot:  slot,
		Name:  fmt.Sprintf("Player %d", slot+1),
		Color: slotColors[slot],
		Alive: true,
		Keys:  []Key{},
	}
}

// HoldsAll reports whether every key ever assigned to the player is in pressed.
// A player with no assigned keys trivially holds all of them.
func (that *Player) HoldsAll(pressed KeySet) bool {
	for _, key := range that.Keys {
		if !pressed.Has(key) {
			return false
		}
	}
	return true
}

func (that *Player) clone() *Player {
	keys := make([]Key, len(that.Keys))
	copy(keys, that.Keys)

	clone := *that
	clone.Keys = keys

	return &clone
}
