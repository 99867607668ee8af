// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package game

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand/v2"
	"sync"

	"github.com/samber/oops"
)

// Error codes surfaced by registry operations.
const (
	CodeNoSuchPlayer    = "NO_SUCH_PLAYER"
	CodeNoWaitingFrames = "NO_WAITING_FRAMES"
	CodeFrameNotFound   = "FRAME_NOT_FOUND"
)

// FrameRecord is the persistence projection of a frame.
type FrameRecord struct {
	ID      string
	Players []string
	Status  Status
	Board   *string
	Turn    *int
}

// FrameStore durably upserts frame projections. Implementations are
// called after every frame mutation; the registry awaits completion but
// never reads status back from storage.
type FrameStore interface {
	UpsertFrame(ctx context.Context, rec FrameRecord) error
}

// RegistryConfig holds dependencies for a Registry.
type RegistryConfig struct {
	Store     FrameStore
	NewEngine EngineFactory
	Logger    *slog.Logger // optional
	Rand      *mrand.Rand  // optional, for deterministic pairing in tests
}

// Registry is the authoritative collection of all frames. Frames are
// appended and never removed; completed frames stay queryable. The
// registry lock covers insertion, lookup and pairing; each frame's own
// lock covers its mutation and status derivation.
type Registry struct {
	store     FrameStore
	newEngine EngineFactory
	logger    *slog.Logger

	mu     sync.RWMutex
	frames []*Frame

	rngMu sync.Mutex
	rng   *mrand.Rand
}

// NewRegistry creates a registry. Store and NewEngine are required.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Store == nil {
		return nil, oops.Errorf("frame store is required")
	}
	if cfg.NewEngine == nil {
		return nil, oops.Errorf("engine factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = mrand.New(mrand.NewPCG(newSeed(), newSeed()))
	}
	return &Registry{
		store:     cfg.Store,
		newEngine: cfg.NewEngine,
		logger:    logger,
		rng:       rng,
	}, nil
}

// newSeed draws a PCG seed from crypto/rand.
func newSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return binary.LittleEndian.Uint64(b[:])
}

func (r *Registry) intN(n int) int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.IntN(n)
}

// CreateWaitingFrame allocates a new frame with the given player as its
// sole member, registers it and syncs it to storage.
func (r *Registry) CreateWaitingFrame(ctx context.Context, player *RemotePlayer) (*Frame, error) {
	f := NewFrame()
	f.players = append(f.players, player)

	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()

	r.logger.Info("waiting frame created", "frame_id", f.ID(), "player_id", player.ID())

	f.mu.Lock()
	f.persistMu.Lock()
	rec := f.recordLocked()
	f.mu.Unlock()
	err := r.persist(ctx, rec)
	f.persistMu.Unlock()
	if err != nil {
		return f, err
	}
	return f, nil
}

// AnyWaitingFrames reports whether at least one frame is waiting for a
// second player.
func (r *Registry) AnyWaitingFrames() bool {
	return len(r.WaitingFrames()) > 0
}

// WaitingFrames returns all frames waiting for players, in registry
// insertion order.
func (r *Registry) WaitingFrames() []*Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var waiting []*Frame
	for _, f := range r.frames {
		if f.Status() == StatusWaitingForPlayers {
			waiting = append(waiting, f)
		}
	}
	return waiting
}

// Frames returns a copy of the full frame list in insertion order.
func (r *Registry) Frames() []*Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frames := make([]*Frame, len(r.frames))
	copy(frames, r.frames)
	return frames
}

// JoinWaitingFrame pairs the player into a uniformly random waiting
// frame, assigns first move by an independent coin flip, constructs the
// engine, begins the game and syncs the frame to storage. Fails with
// code NO_WAITING_FRAMES when the waiting pool is empty.
//
// The registry write lock is held across selection and fill so two
// concurrent joiners can never land in the same frame.
func (r *Registry) JoinWaitingFrame(ctx context.Context, player *RemotePlayer) (*Frame, error) {
	r.mu.Lock()

	var waiting []*Frame
	for _, f := range r.frames {
		if f.Status() == StatusWaitingForPlayers {
			waiting = append(waiting, f)
		}
	}
	if len(waiting) == 0 {
		r.mu.Unlock()
		return nil, oops.Code(CodeNoWaitingFrames).
			With("player_id", player.ID()).
			Errorf("no waiting frames to join")
	}
	f := waiting[r.intN(len(waiting))]

	f.mu.Lock()
	f.players = append(f.players, player)

	firstIndex := r.intN(2)
	first := f.players[firstIndex]
	second := f.players[(firstIndex+1)%2]

	eng, err := r.newEngine(first, second)
	if err == nil {
		err = eng.Begin()
	}
	if err != nil {
		// Leave the frame matchable again rather than wedged half-full.
		f.players = f.players[:len(f.players)-1]
		f.mu.Unlock()
		r.mu.Unlock()
		return nil, oops.With("frame_id", f.id).Wrap(err)
	}

	f.engine = eng
	f.touchLocked()
	// The frame is no longer matchable, so the registry lock can go
	// before the persist mutex, which may wait on in-flight I/O.
	r.mu.Unlock()
	f.persistMu.Lock()
	rec := f.recordLocked()
	f.mu.Unlock()

	r.logger.Info("frame joined",
		"frame_id", f.ID(),
		"player_id", player.ID(),
		"first_player_id", first.ID(),
	)

	err = r.persist(ctx, rec)
	f.persistMu.Unlock()
	if err != nil {
		return f, err
	}
	return f, nil
}

// FrameByID returns the frame with the given ID, or nil. Absence is a
// valid result, not an error.
func (r *Registry) FrameByID(id string) *Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.frames {
		if f.id == id {
			return f
		}
	}
	return nil
}

// FrameStatus returns the status snapshot for a frame, or a bare
// NONEXISTENT snapshot for an unknown ID.
func (r *Registry) FrameStatus(id string) StatusSnapshot {
	f := r.FrameByID(id)
	if f == nil {
		return StatusSnapshot{Status: StatusNonexistent}
	}
	return f.Snapshot()
}

// ApplyMove arbitrates a submitted move.
//
// A move against an unknown frame yields a NONEXISTENT snapshot. A move
// against a frame that is not in progress returns that frame's snapshot
// unchanged; the move is silently dropped. An unresolvable player is a
// hard NO_SUCH_PLAYER failure. Otherwise the move is delegated to the
// player adapter's fingerprint gate: rejection forces the returned
// status to HASH_MISMATCH while still carrying the post-attempt hash and
// state; acceptance syncs the frame to storage before returning.
func (r *Registry) ApplyMove(ctx context.Context, frameID, playerID, move, expectedHash string) (StatusSnapshot, error) {
	f := r.FrameByID(frameID)
	if f == nil {
		return StatusSnapshot{Status: StatusNonexistent}, nil
	}

	f.mu.Lock()
	if f.statusLocked() != StatusInProgress {
		snap := f.snapshotLocked()
		f.mu.Unlock()
		return snap, nil
	}

	resolved := f.engine.PlayerByID(playerID)
	if resolved == nil {
		f.mu.Unlock()
		return StatusSnapshot{}, oops.Code(CodeNoSuchPlayer).
			With("frame_id", frameID).
			With("player_id", playerID).
			Errorf("no player %s in frame %s", playerID, frameID)
	}
	adapter, ok := resolved.(*RemotePlayer)
	if !ok {
		f.mu.Unlock()
		return StatusSnapshot{}, oops.Code(CodeNoSuchPlayer).
			With("frame_id", frameID).
			With("player_id", playerID).
			Errorf("player %s is not remotely controllable", playerID)
	}

	accepted, err := adapter.MoveByPlayer(f.engine, expectedHash, move)
	if err != nil {
		f.mu.Unlock()
		return StatusSnapshot{}, oops.With("frame_id", frameID).Wrap(err)
	}
	if !accepted {
		snap := f.snapshotLocked()
		f.mu.Unlock()
		snap.Status = StatusHashMismatch
		return snap, nil
	}

	f.touchLocked()
	snap := f.snapshotLocked()
	f.persistMu.Lock()
	rec := f.recordLocked()
	f.mu.Unlock()

	err = r.persist(ctx, rec)
	f.persistMu.Unlock()
	if err != nil {
		return snap, err
	}
	return snap, nil
}

// AcknowledgeState records a player's acknowledgement of an observed
// state. The shape mirrors ApplyMove but nothing mutates, so nothing is
// persisted. Moves are never gated on acknowledgement.
func (r *Registry) AcknowledgeState(frameID, playerID, expectedHash string) (StatusSnapshot, error) {
	f := r.FrameByID(frameID)
	if f == nil {
		return StatusSnapshot{Status: StatusNonexistent}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Waiting frames, and frames force-terminated while waiting,
	// never gained an engine. There is no state to acknowledge.
	if f.engine == nil {
		return f.snapshotLocked(), nil
	}

	resolved := f.engine.PlayerByID(playerID)
	adapter, ok := resolved.(*RemotePlayer)
	if resolved == nil || !ok {
		return StatusSnapshot{}, oops.Code(CodeNoSuchPlayer).
			With("frame_id", frameID).
			With("player_id", playerID).
			Errorf("no player %s in frame %s", playerID, frameID)
	}

	snap := f.snapshotLocked()
	if !adapter.AcknowledgeStateByPlayer(f.engine, expectedHash) {
		snap.Status = StatusHashMismatch
	}
	return snap, nil
}

// ForceTimeout force-terminates a frame, marking it completed and
// syncing it to storage. Extension point for external abandonment
// policies; the core protocol never calls it.
func (r *Registry) ForceTimeout(ctx context.Context, frameID string) (StatusSnapshot, error) {
	f := r.FrameByID(frameID)
	if f == nil {
		return StatusSnapshot{}, oops.Code(CodeFrameNotFound).
			With("frame_id", frameID).
			Errorf("frame %s not found", frameID)
	}

	f.mu.Lock()
	f.timedOut = true
	snap := f.snapshotLocked()
	f.persistMu.Lock()
	rec := f.recordLocked()
	f.mu.Unlock()

	r.logger.Info("frame force-terminated", "frame_id", frameID)

	err := r.persist(ctx, rec)
	f.persistMu.Unlock()
	if err != nil {
		return snap, err
	}
	return snap, nil
}

// NumFrames returns the total number of frames ever created.
func (r *Registry) NumFrames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.frames)
}

// NumWaitingFrames returns the number of frames waiting for players.
func (r *Registry) NumWaitingFrames() int {
	return len(r.WaitingFrames())
}

// NumCompletedFrames returns the number of completed frames.
func (r *Registry) NumCompletedFrames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, f := range r.frames {
		if f.Status() == StatusCompleted {
			n++
		}
	}
	return n
}

func (r *Registry) persist(ctx context.Context, rec FrameRecord) error {
	if err := r.store.UpsertFrame(ctx, rec); err != nil {
		return oops.With("frame_id", rec.ID).Wrap(err)
	}
	return nil
}
