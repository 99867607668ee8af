// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

// Package game implements the frame registry and the move-application
// protocol for anonymous two-player matchmaking.
package game

// Status is the derived lifecycle state of a frame as reported to clients.
// The strings are wire values and must not change.
type Status string

const (
	// StatusWaitingForPlayers means the frame has fewer than two players.
	StatusWaitingForPlayers Status = "WAITING_FOR_PLAYERS"
	// StatusInProgress means the frame is full and its game is being played.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted means the game is over or the frame was force-terminated.
	StatusCompleted Status = "COMPLETED"
	// StatusHashMismatch is returned when a move targeted a stale state.
	// It is a response value, never a stored frame state.
	StatusHashMismatch Status = "HASH_MISMATCH"
	// StatusNonexistent is the registry's answer for an unknown frame ID.
	StatusNonexistent Status = "NONEXISTENT"
)

// StatusSnapshot is the value object returned to callers querying a frame.
// Hash and State are only present once the frame has left the waiting pool.
type StatusSnapshot struct {
	Status Status     `json:"status"`
	GameID string     `json:"gameId,omitempty"`
	Hash   string     `json:"hash,omitempty"`
	State  *GameState `json:"state,omitempty"`
}
