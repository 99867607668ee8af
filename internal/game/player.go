// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package game

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Error codes for continuation misuse.
const (
	CodeMoveAlreadyPending = "MOVE_ALREADY_PENDING"
	CodeAckAlreadyPending  = "ACK_ALREADY_PENDING"
)

// RemotePlayer adapts a player submitting moves over the network to the
// engine's player contract. Externally submitted moves and
// acknowledgements are validated against the engine's current state
// fingerprint before anything is forwarded into the engine.
//
// A RemotePlayer may hold at most one pending "await next move"
// continuation and one pending "await acknowledgement" continuation at a
// time. Awaiting never holds any frame lock; resolution happens inside
// the frame's critical section and never blocks, so a frame stays
// queryable while one side waits for its turn.
type RemotePlayer struct {
	id     string
	logger *slog.Logger

	mu          sync.Mutex
	pendingMove chan string
	pendingAck  chan struct{}
}

// NewRemotePlayer creates a remote player adapter with a no-op logger.
func NewRemotePlayer(id string) *RemotePlayer {
	return &RemotePlayer{
		id:     id,
		logger: slog.New(slog.DiscardHandler),
	}
}

// NewRemotePlayerWithLogger creates a remote player adapter logging to
// the provided logger.
func NewRemotePlayerWithLogger(id string, logger *slog.Logger) *RemotePlayer {
	p := NewRemotePlayer(id)
	if logger != nil {
		p.logger = logger.With("player_id", id)
	}
	return p
}

// ID returns the player's identifier, as known to the rules engine.
func (p *RemotePlayer) ID() string { return p.id }

// MoveByPlayer submits a network-received move against the engine. The
// expected hash is compared against the engine's fingerprint at the
// instant of comparison; on mismatch the move is rejected and the engine
// is left untouched. On a match the move is applied (legality and
// turn-order checks are entirely the engine's) and a pending move
// continuation, if any, is resolved. Returns whether the move was
// accepted; engine failures propagate unmasked.
//
// Callers must hold the owning frame's lock.
func (p *RemotePlayer) MoveByPlayer(eng Engine, expectedHash, move string) (bool, error) {
	if expectedHash != eng.State().Hash {
		p.logger.Debug("move rejected: state hash mismatch", "expected_hash", expectedHash)
		return false, nil
	}
	if err := eng.Play(p.id, move); err != nil {
		return false, oops.With("move", move).Wrap(err)
	}
	p.logger.Debug("move applied", "move", move)
	p.resolveMove(move)
	return true, nil
}

// AcknowledgeStateByPlayer records that the player has observed the
// state with the given fingerprint. Same gate as MoveByPlayer, but
// nothing is forwarded into the engine; only a pending acknowledgement
// continuation is resolved. Returns whether the hash matched.
func (p *RemotePlayer) AcknowledgeStateByPlayer(eng Engine, expectedHash string) bool {
	if expectedHash != eng.State().Hash {
		p.logger.Debug("ack rejected: state hash mismatch", "expected_hash", expectedHash)
		return false
	}
	p.logger.Debug("state acknowledged", "hash", expectedHash)
	p.mu.Lock()
	if p.pendingAck != nil {
		close(p.pendingAck)
		p.pendingAck = nil
	}
	p.mu.Unlock()
	return true
}

// NextMove suspends until a future MoveByPlayer call resolves it and
// returns the accepted move string. Only one suspension may be
// outstanding per player; a second call while one is pending is a usage
// error.
func (p *RemotePlayer) NextMove(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.pendingMove != nil {
		p.mu.Unlock()
		return "", oops.Code(CodeMoveAlreadyPending).
			With("player_id", p.id).
			Errorf("a move continuation is already pending")
	}
	ch := make(chan string, 1)
	p.pendingMove = ch
	p.mu.Unlock()

	select {
	case move := <-ch:
		return move, nil
	case <-ctx.Done():
		p.clearPendingMove(ch)
		return "", oops.With("player_id", p.id).Wrap(ctx.Err())
	}
}

// AwaitStateAck suspends until a future AcknowledgeStateByPlayer call
// with a matching fingerprint resolves it.
func (p *RemotePlayer) AwaitStateAck(ctx context.Context) error {
	p.mu.Lock()
	if p.pendingAck != nil {
		p.mu.Unlock()
		return oops.Code(CodeAckAlreadyPending).
			With("player_id", p.id).
			Errorf("an acknowledgement continuation is already pending")
	}
	ch := make(chan struct{})
	p.pendingAck = ch
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		p.clearPendingAck(ch)
		return oops.With("player_id", p.id).Wrap(ctx.Err())
	}
}

// resolveMove delivers a move to a waiting NextMove call, if any. The
// channel is buffered so delivery never blocks the mutation path.
func (p *RemotePlayer) resolveMove(move string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingMove != nil {
		p.pendingMove <- move
		p.pendingMove = nil
	}
}

func (p *RemotePlayer) clearPendingMove(ch chan string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingMove == ch {
		p.pendingMove = nil
	}
}

func (p *RemotePlayer) clearPendingAck(ch chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingAck == ch {
		p.pendingAck = nil
	}
}
