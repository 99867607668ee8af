// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package game

import (
	"sync"
	"time"
)

// Frame is one matchable or in-progress two-player game unit. A frame
// starts empty, collects up to two players, and gains an engine the
// moment the second player arrives. The engine reference never changes
// afterwards.
//
// All mutating and state-reading operations on a frame are serialized by
// its mutex so the compare-fingerprint-then-mutate step of the move
// protocol is atomic. Lock order across the package is always
// registry before frame.
type Frame struct {
	id        string
	createdAt time.Time

	mu           sync.Mutex
	players      []*RemotePlayer
	engine       Engine
	timedOut     bool
	lastActivity time.Time

	// persistMu serializes storage writes for this frame. It is
	// acquired while mu is still held, so records reach the store in
	// the order the mutations happened, without mu blocking on I/O.
	persistMu sync.Mutex
}

// NewFrame creates an empty frame with a fresh ID.
func NewFrame() *Frame {
	now := time.Now()
	return &Frame{
		id:           NewULID().String(),
		createdAt:    now,
		lastActivity: now,
	}
}

// ID returns the frame's immutable identifier.
func (f *Frame) ID() string { return f.id }

// CreatedAt returns the frame's creation time.
func (f *Frame) CreatedAt() time.Time { return f.createdAt }

// Players returns a copy of the frame's player list in insertion order.
func (f *Frame) Players() []*RemotePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	players := make([]*RemotePlayer, len(f.players))
	copy(players, f.players)
	return players
}

// Engine returns the frame's engine, or nil while waiting for players.
func (f *Frame) Engine() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engine
}

// LastActivity returns the last time the frame was created, joined or
// successfully moved in.
func (f *Frame) LastActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActivity
}

// Status derives the frame's lifecycle state. It is recomputed on every
// call so it can never go stale relative to engine mutation.
func (f *Frame) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusLocked()
}

func (f *Frame) statusLocked() Status {
	if f.timedOut {
		return StatusCompleted
	}
	if len(f.players) < 2 {
		return StatusWaitingForPlayers
	}
	if f.engine != nil && f.engine.State().State.GameOver {
		return StatusCompleted
	}
	return StatusInProgress
}

// Snapshot returns the frame's client-visible status snapshot. Hash and
// state are included once the frame has an engine.
func (f *Frame) Snapshot() StatusSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Frame) snapshotLocked() StatusSnapshot {
	snap := StatusSnapshot{
		Status: f.statusLocked(),
		GameID: f.id,
	}
	if snap.Status != StatusWaitingForPlayers && f.engine != nil {
		st := f.engine.State()
		snap.Hash = st.Hash
		state := st.State
		snap.State = &state
	}
	return snap
}

// Record projects the frame into its persistence shape.
func (f *Frame) Record() FrameRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordLocked()
}

func (f *Frame) recordLocked() FrameRecord {
	rec := FrameRecord{
		ID:     f.id,
		Status: f.statusLocked(),
	}
	for _, p := range f.players {
		rec.Players = append(rec.Players, p.ID())
	}
	if f.engine != nil {
		st := f.engine.State()
		board := st.State.Board
		turn := st.State.Turn
		rec.Board = &board
		rec.Turn = &turn
	}
	return rec
}

func (f *Frame) touchLocked() {
	f.lastActivity = time.Now()
}
