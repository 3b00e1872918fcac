package entity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/keyholdgame/keyhold-backend/internal/apperror"
)

// Key is a canonical key identifier: one of "A".."Z", "0".."9" or "SPACE".
// Raw device events are normalized to this alphabet before they reach the core.
type Key string

const KeySpace Key = "SPACE"

const AlphabetSize = 37

// Alphabet returns all canonical keys in a fixed order: letters, digits, space.
func Alphabet() []Key {
	keys := make([]Key, 0, AlphabetSize)
	for r := 'A'; r <= 'Z'; r++ {
		keys = append(keys, Key(r))
	}
	for r := '0'; r <= '9'; r++ {
		keys = append(keys, Key(r))
	}
	return append(keys, KeySpace)
}

// ParseKey maps a normalized identifier to a Key, accepting lower case
// and the single literal space character for convenience.
func ParseKey(raw string) (Key, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" && raw != "" {
		s = string(KeySpace)
	}

	switch {
	case s == string(KeySpace):
		return KeySpace, nil
	case len(s) == 1 && (s[0] >= 'A' && s[0] <= 'Z' || s[0] >= '0' && s[0] <= '9'):
		return Key(s), nil
	default:
		return "", fmt.Errorf("%w: %q", apperror.ErrUnknownKey, raw)
	}
}

// KeySet is a set of canonical keys, used for the currently pressed keys.
type KeySet map[Key]struct{}

func NewKeySet() KeySet {
	return make(KeySet)
}

// Add inserts the key and reports whether membership actually changed.
func (that KeySet) Add(key Key) bool {
	if _, ok := that[key]; ok {
		return false
	}
	that[key] = struct{}{}
	return true
}

// Remove deletes the key and reports whether membership actually changed.
func (that KeySet) Remove(key Key) bool {
	if _, ok := that[key]; !ok {
		return false
	}
	delete(that, key)
	return true
}

func (that KeySet) Has(key Key) bool {
	_, ok := that[key]
	return ok
}

func (that KeySet) Len() int {
	return len(that)
}

func (that KeySet) Clone() KeySet {
	clone := make(KeySet, len(that))
	for key := range that {
		clone[key] = struct{}{}
	}
	return clone
}

// MarshalJSON renders the set as a sorted array so snapshots are stable.
func (that KeySet) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(that))
	for key := range that {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	return json.Marshal(keys) //nolint: wrapcheck // marshalling a plain slice
}

func (that *KeySet) UnmarshalJSON(data []byte) error {
	var keys []Key
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("failed to unmarshal key set: %w", err)
	}

	set := make(KeySet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	*that = set

	return nil
}
