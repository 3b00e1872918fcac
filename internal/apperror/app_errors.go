package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrGameInProgress   = errors.New("game is already in progress")
	ErrNotEnoughPlayers = errors.New("at least two players are required to start")
	ErrSlotOutOfRange   = errors.New("player slot is out of range")
	ErrSlotOccupied     = errors.New("player slot is already occupied")
	ErrSlotEmpty        = errors.New("player slot is empty")
	ErrNoKeysLeft       = errors.New("no unassigned keys left")
	ErrNoActivePlayers  = errors.New("no active players")
	ErrUnknownKey       = errors.New("unknown key")
	ErrGameNotFound     = errors.New("game not found")
)
