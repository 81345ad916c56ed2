package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kolaffiliate/internal/authorization"
	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"go.uber.org/zap"
)

const defaultHeartbeatInterval = 15 * time.Second

// GetRealtimeStats is the polling form of the pushed stats. Global stats
// are only added for callers allowed to see them.
func (s *Server) GetRealtimeStats(c *gin.Context) {
	kol, ok := kolFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	includeGlobal, err := parseOptionalBool(c.Query("includeGlobal"))
	if err != nil {
		AbortWithError(c, newValidationError("includeGlobal", "invalid_include_global", "includeGlobal must be a boolean"))
		return
	}

	ctx := c.Request.Context()
	kolStats, err := s.statsSvc.Compute(ctx, kol.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp := realtimedomain.PollResponse{
		KolStats:  kolStats,
		Timestamp: kolStats.Timestamp,
	}

	if includeGlobal != nil && *includeGlobal {
		allowed, err := s.canPerform(c, authorization.ObjectStats, authorization.ActionStatsGlobal)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if allowed {
			global, err := s.statsSvc.Compute(ctx, 0)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			resp.GlobalStats = global
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ServeRealtimeWebsocket upgrades the connection and hands it to the
// broadcaster. Callers authenticate per subscription with a token.
func (s *Server) ServeRealtimeWebsocket(c *gin.Context) {
	if s.broadcaster == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the handshake error
		logger.FromContext(c.Request.Context()).Debug("websocket upgrade failed", zap.Error(err))
		c.Abort()
		return
	}

	s.broadcaster.ServeWebsocket(c.Request.Context(), ws, s.authorizeSubscription)
}

// authorizeSubscription lets an approved KOL watch itself and an actor
// with global stats access watch anyone.
func (s *Server) authorizeSubscription(ctx context.Context, token string, kolID int64) error {
	if token == "" {
		return ErrUnauthorized
	}
	actor, err := s.verifier.Verify(token)
	if err != nil {
		return err
	}
	if s.authzSvc != nil {
		if err := s.authzSvc.Authorize(ctx, actor.Role, authorization.ObjectStats, authorization.ActionStatsGlobal); err == nil {
			return nil
		}
	}
	if actor.UserID != kolID {
		return ErrForbidden
	}
	_, err = s.kolSvc.RequireApproved(ctx, kolID)
	return err
}

// StreamRealtimeStats pushes the caller's stats as server-sent events.
func (s *Server) StreamRealtimeStats(c *gin.Context) {
	if s.broadcaster == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	kol, ok := kolFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	conn := s.broadcaster.Hub().Connect()
	defer conn.Close()
	if err := conn.Subscribe(kol.ID); err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}

	ctx := c.Request.Context()
	if err := writeStatsEvent(writer, s.broadcaster.Snapshot(ctx, kol.ID)); err != nil {
		return
	}
	flusher.Flush()

	interval := s.cfg.Realtime.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case msg := <-conn.Messages():
			if err := writeStatsEvent(writer, msg); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeStatsEvent(w io.Writer, msg realtimedomain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
