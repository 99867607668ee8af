// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package game

// PlayerRef identifies a player inside an engine state, with the side
// the engine assigned to them.
type PlayerRef struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

// GameState is the engine's opaque board/turn representation as exposed
// to clients. The registry never interprets Board.
type GameState struct {
	GameOver bool        `json:"gameOver"`
	Winner   string      `json:"winner,omitempty"`
	Turn     int         `json:"turn"`
	Players  []PlayerRef `json:"players"`
	Board    string      `json:"board"`
}

// StateSnapshot pairs a game state with its fingerprint. The hash is an
// opaque digest of the state; clients echo it back to prove they acted on
// current information.
type StateSnapshot struct {
	Hash  string    `json:"hash"`
	State GameState `json:"state"`
}

// EnginePlayer is a player reference as the rules engine sees it.
type EnginePlayer interface {
	ID() string
}

// Engine is the rules-engine collaborator contract. Implementations own
// all legality and turn-order checking; the registry only gates moves on
// the state fingerprint. Engines are not required to be safe for
// concurrent use: the owning frame serializes every call.
type Engine interface {
	// Begin starts the game and computes the first state and fingerprint.
	Begin() error
	// State returns the current state and its fingerprint.
	State() StateSnapshot
	// PlayerByID resolves a player inside the engine, or nil if absent.
	PlayerByID(id string) EnginePlayer
	// Play applies a move by the given player. Illegal or out-of-turn
	// moves return an error and leave the state untouched.
	Play(playerID, move string) error
}

// EngineFactory constructs an engine for a full frame. The first player
// moves first.
type EngineFactory func(first, second EnginePlayer) (Engine, error)
