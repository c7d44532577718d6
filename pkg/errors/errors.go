package errors

import "errors"

// Auth / user errors.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
)

// Room errors.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomNotWaiting   = errors.New("room is not accepting players")
	ErrNotSeated        = errors.New("player is not seated in this room")
	ErrRoomAccessDenied = errors.New("room access denied")
)

// Game engine errors. All of these are local and recoverable: a rejected
// action never mutates game state.
var (
	ErrInvalidPlayerCount   = errors.New("player count must be 2, 3 or 4")
	ErrInsufficientPlayers  = errors.New("not enough ready players to start")
	ErrHandInProgress       = errors.New("a hand is already in progress")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrInvalidHandReference = errors.New("cards are not in your hand")
	ErrIllegalPlay          = errors.New("play is not legal against the current pile")
	ErrIllegalPass          = errors.New("cannot pass when you must lead")
	ErrIncompleteHand       = errors.New("hand has not finished")
)

// Settlement / wallet errors.
var (
	ErrSettlementValidation = errors.New("settlement validation failed")
)
