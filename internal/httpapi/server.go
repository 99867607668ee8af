// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

// Package httpapi exposes the frame registry over HTTP. One handler per
// registry operation; auth is a trusted player-id header extracted here
// and nowhere else.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hiveframe/hiveframe/internal/game"
)

// PlayerIDHeader carries the caller's player identity.
// TODO: replace trusted-header identity with signed tokens once a
// client credential story exists.
const PlayerIDHeader = "X-Player-Id"

const playerIDKey = "playerID"

// FrameService is the registry surface the transport consumes.
type FrameService interface {
	AnyWaitingFrames() bool
	CreateWaitingFrame(ctx context.Context, player *game.RemotePlayer) (*game.Frame, error)
	JoinWaitingFrame(ctx context.Context, player *game.RemotePlayer) (*game.Frame, error)
	FrameStatus(id string) game.StatusSnapshot
	ApplyMove(ctx context.Context, frameID, playerID, move, expectedHash string) (game.StatusSnapshot, error)
	AcknowledgeState(frameID, playerID, expectedHash string) (game.StatusSnapshot, error)
	NumFrames() int
	NumWaitingFrames() int
	NumCompletedFrames() int
}

// Recorder records telemetry events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Event(category, action string)
	RecordMove(outcome string)
}

// Server handles the HTTP API.
type Server struct {
	frames FrameService
	events Recorder
	logger *slog.Logger
	tracer trace.Tracer
}

// NewServer creates an HTTP API server.
func NewServer(frames FrameService, events Recorder) (*Server, error) {
	if frames == nil {
		return nil, oops.Errorf("frame service is required")
	}
	if events == nil {
		return nil, oops.Errorf("event recorder is required")
	}
	return &Server{
		frames: frames,
		events: events,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("github.com/hiveframe/hiveframe/internal/httpapi"),
	}, nil
}

// NewServerWithLogger creates an HTTP API server logging to the
// provided logger.
func NewServerWithLogger(frames FrameService, events Recorder, logger *slog.Logger) (*Server, error) {
	s, err := NewServer(frames, events)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		s.logger = logger
	}
	return s, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.trace(), s.requestLog(), s.extractPlayerID())

	r.GET("/healthcheck", s.handleHealthcheck)
	r.GET("/game/new", s.requireAuth, s.handleNewGame)
	r.GET("/game/:gameId/status", s.handleStatus)
	r.GET("/game/:gameId/move/:move/:hash", s.requireAuth, s.handleMove)
	r.GET("/game/:gameId/ack/:hash", s.requireAuth, s.handleAck)

	return r
}

// trace opens a span per request so handler logs carry trace ids.
func (s *Server) trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := s.tracer.Start(c.Request.Context(), c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func (s *Server) extractPlayerID() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetHeader(PlayerIDHeader)
		if playerID != "" {
			s.logger.DebugContext(c.Request.Context(), "got player ID from headers", "player_id", playerID)
		}
		c.Set(playerIDKey, playerID)
		c.Next()
	}
}

// requireAuth rejects requests with no player identity.
func (s *Server) requireAuth(c *gin.Context) {
	if c.GetString(playerIDKey) == "" {
		s.logger.DebugContext(c.Request.Context(), "no player ID in headers, request ends here")
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

func (s *Server) handleHealthcheck(c *gin.Context) {
	s.events.Event("service", "healthcheck")
	c.JSON(http.StatusOK, gin.H{
		"health":           "healthy",
		"nFrames":          s.frames.NumFrames(),
		"nCompletedFrames": s.frames.NumCompletedFrames(),
		"nWaitingFrames":   s.frames.NumWaitingFrames(),
	})
}

// handleNewGame pairs the caller into a waiting frame when one exists,
// otherwise creates a fresh waiting frame. Losing the join race to a
// concurrent caller falls back to creating.
func (s *Server) handleNewGame(c *gin.Context) {
	ctx := c.Request.Context()
	playerID := c.GetString(playerIDKey)
	player := game.NewRemotePlayerWithLogger(playerID, s.logger)

	var frame *game.Frame
	var err error
	if s.frames.AnyWaitingFrames() {
		frame, err = s.frames.JoinWaitingFrame(ctx, player)
		if hasCode(err, game.CodeNoWaitingFrames) {
			frame, err = s.frames.CreateWaitingFrame(ctx, player)
		}
	} else {
		frame, err = s.frames.CreateWaitingFrame(ctx, player)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to start or join game", "player_id", playerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start game"})
		return
	}

	s.events.Event("game", "new")
	c.JSON(http.StatusOK, gin.H{"gameId": frame.ID()})
}

func (s *Server) handleStatus(c *gin.Context) {
	gameID := c.Param("gameId")
	snap := s.frames.FrameStatus(gameID)
	snap.GameID = gameID
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleMove(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := c.Param("gameId")
	playerID := c.GetString(playerIDKey)

	snap, err := s.frames.ApplyMove(ctx, gameID, playerID, c.Param("move"), c.Param("hash"))
	if err != nil {
		if hasCode(err, game.CodeNoSuchPlayer) {
			c.JSON(http.StatusBadRequest, gin.H{"error": game.CodeNoSuchPlayer})
			return
		}
		s.logger.ErrorContext(ctx, "failed to apply move",
			"game_id", gameID,
			"player_id", playerID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not apply move"})
		return
	}

	s.events.RecordMove(moveOutcome(snap.Status))
	snap.GameID = gameID
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleAck(c *gin.Context) {
	gameID := c.Param("gameId")
	playerID := c.GetString(playerIDKey)

	snap, err := s.frames.AcknowledgeState(gameID, playerID, c.Param("hash"))
	if err != nil {
		if hasCode(err, game.CodeNoSuchPlayer) {
			c.JSON(http.StatusBadRequest, gin.H{"error": game.CodeNoSuchPlayer})
			return
		}
		s.logger.ErrorContext(c.Request.Context(), "failed to acknowledge state",
			"game_id", gameID,
			"player_id", playerID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not acknowledge state"})
		return
	}

	snap.GameID = gameID
	c.JSON(http.StatusOK, snap)
}

// moveOutcome maps a post-move status to a metrics label.
func moveOutcome(status game.Status) string {
	switch status {
	case game.StatusInProgress:
		return "accepted"
	case game.StatusCompleted:
		return "completed"
	case game.StatusHashMismatch:
		return "hash_mismatch"
	case game.StatusNonexistent:
		return "nonexistent"
	default:
		return "dropped"
	}
}

// hasCode reports whether err carries the given oops error code.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}
