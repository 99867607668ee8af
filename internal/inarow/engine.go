// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

// Package inarow implements a k-in-a-row rules engine behind the
// registry's engine contract. Two players alternate placing marks on a
// rectangular grid; the first to line up the configured number of marks
// wins, and a full board is a draw.
package inarow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/hiveframe/hiveframe/internal/game"
)

// Error codes for rejected moves.
const (
	CodeGameNotStarted = "GAME_NOT_STARTED"
	CodeGameOver       = "GAME_OVER"
	CodeOutOfTurn      = "OUT_OF_TURN"
	CodeIllegalMove    = "ILLEGAL_MOVE"
)

// Cell marks on the board string.
const (
	cellEmpty  = '.'
	cellFirst  = 'X'
	cellSecond = 'O'
)

// Colors assigned by seat. The first seat moves first.
var seatColors = [2]string{"white", "black"}

// Options configures the board and win condition.
type Options struct {
	Rows      int
	Cols      int
	WinLength int
}

// DefaultOptions is a 3x3 board with three in a row to win.
var DefaultOptions = Options{Rows: 3, Cols: 3, WinLength: 3}

func (o Options) validate() error {
	if o.Rows < 1 || o.Cols < 1 {
		return oops.Errorf("board must have at least one row and column")
	}
	if o.WinLength < 2 {
		return oops.Errorf("win length must be at least 2")
	}
	if o.WinLength > o.Rows && o.WinLength > o.Cols {
		return oops.Errorf("win length %d cannot fit a %dx%d board", o.WinLength, o.Rows, o.Cols)
	}
	return nil
}

// Engine holds one game between two players. It is not safe for
// concurrent use; the owning frame serializes every call.
type Engine struct {
	opts    Options
	players [2]game.EnginePlayer
	grid    [][]byte
	turn    int
	begun   bool
	over    bool
	winner  string
	hash    string
}

// Factory returns a game.EngineFactory constructing engines with the
// given options.
func Factory(opts Options) game.EngineFactory {
	return func(first, second game.EnginePlayer) (game.Engine, error) {
		return New(opts, first, second)
	}
}

// New creates an engine for the two players. The first player moves
// first.
func New(opts Options, first, second game.EnginePlayer) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if first == nil || second == nil {
		return nil, oops.Errorf("both players are required")
	}
	if first.ID() == second.ID() {
		return nil, oops.With("player_id", first.ID()).Errorf("players must be distinct")
	}

	grid := make([][]byte, opts.Rows)
	for r := range grid {
		row := make([]byte, opts.Cols)
		for c := range row {
			row[c] = cellEmpty
		}
		grid[r] = row
	}

	return &Engine{
		opts:    opts,
		players: [2]game.EnginePlayer{first, second},
		grid:    grid,
	}, nil
}

// Begin starts the game and computes the initial fingerprint.
func (e *Engine) Begin() error {
	if e.begun {
		return oops.Errorf("game already begun")
	}
	e.begun = true
	e.rehash()
	return nil
}

// State returns the current state and fingerprint.
func (e *Engine) State() game.StateSnapshot {
	players := make([]game.PlayerRef, len(e.players))
	for i, p := range e.players {
		players[i] = game.PlayerRef{ID: p.ID(), Color: seatColors[i]}
	}
	return game.StateSnapshot{
		Hash: e.hash,
		State: game.GameState{
			GameOver: e.over,
			Winner:   e.winner,
			Turn:     e.turn,
			Players:  players,
			Board:    e.boardString(),
		},
	}
}

// PlayerByID resolves one of the two seated players, or nil.
func (e *Engine) PlayerByID(id string) game.EnginePlayer {
	for _, p := range e.players {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

// Play places the given player's mark. Move strings are "row,col",
// zero-based.
func (e *Engine) Play(playerID, move string) error {
	if !e.begun {
		return oops.Code(CodeGameNotStarted).Errorf("game has not begun")
	}
	if e.over {
		return oops.Code(CodeGameOver).Errorf("game is over")
	}

	seat := e.turn % 2
	if e.players[seat].ID() != playerID {
		return oops.Code(CodeOutOfTurn).
			With("player_id", playerID).
			Errorf("it is not %s's turn", playerID)
	}

	row, col, err := parseMove(move)
	if err != nil {
		return err
	}
	if row < 0 || row >= e.opts.Rows || col < 0 || col >= e.opts.Cols {
		return oops.Code(CodeIllegalMove).
			With("move", move).
			Errorf("move %q is off the board", move)
	}
	if e.grid[row][col] != cellEmpty {
		return oops.Code(CodeIllegalMove).
			With("move", move).
			Errorf("cell %q is already occupied", move)
	}

	mark := byte(cellFirst)
	if seat == 1 {
		mark = cellSecond
	}
	e.grid[row][col] = mark
	e.turn++

	switch {
	case e.lineThrough(row, col):
		e.over = true
		e.winner = playerID
	case e.turn == e.opts.Rows*e.opts.Cols:
		e.over = true
	}

	e.rehash()
	return nil
}

// parseMove splits a "row,col" move string.
func parseMove(move string) (int, int, error) {
	parts := strings.SplitN(move, ",", 2)
	if len(parts) != 2 {
		return 0, 0, oops.Code(CodeIllegalMove).
			With("move", move).
			Errorf("move %q is not of the form row,col", move)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, oops.Code(CodeIllegalMove).With("move", move).Wrap(err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, oops.Code(CodeIllegalMove).With("move", move).Wrap(err)
	}
	return row, col, nil
}

// lineThrough reports whether the mark just placed at (row,col)
// completes a line of the configured length in any direction.
func (e *Engine) lineThrough(row, col int) bool {
	mark := e.grid[row][col]
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

	for _, d := range dirs {
		count := 1

		fr, fc := row+d[0], col+d[1]
		for fr >= 0 && fr < e.opts.Rows && fc >= 0 && fc < e.opts.Cols && e.grid[fr][fc] == mark {
			count++
			fr += d[0]
			fc += d[1]
		}

		br, bc := row-d[0], col-d[1]
		for br >= 0 && br < e.opts.Rows && bc >= 0 && bc < e.opts.Cols && e.grid[br][bc] == mark {
			count++
			br -= d[0]
			bc -= d[1]
		}

		if count >= e.opts.WinLength {
			return true
		}
	}
	return false
}

// boardString flattens the grid row by row into a compact ASCII string.
func (e *Engine) boardString() string {
	var b strings.Builder
	b.Grow(e.opts.Rows * e.opts.Cols)
	for _, row := range e.grid {
		b.Write(row)
	}
	return b.String()
}

// rehash recomputes the state fingerprint. Any observable state feeds
// the digest so no two distinct states can share a hash in practice.
func (e *Engine) rehash() {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%t|%s|%s",
		e.players[0].ID(),
		e.players[1].ID(),
		e.turn,
		e.over,
		e.winner,
		e.boardString(),
	)
	e.hash = hex.EncodeToString(h.Sum(nil))
}
