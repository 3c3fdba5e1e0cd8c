package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/emofusion/internal/platform/errors"
)

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/ws/:id", s.handleStream)
	if s.centrifugeHandler != nil {
		s.echo.GET("/connection/websocket", echo.WrapHandler(centrifugeAuthMiddleware(s.centrifugeHandler)))
	}
}

// handleStream upgrades to a raw WebSocket that receives every fusion update and alert of one session.
func (s *Server) handleStream(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	if _, _, err := s.app.Latest(id); err != nil {
		return domainError(err, id)
	}

	ip := c.RealIP()
	if ok, reason := s.streamLimits.acquire(ip); !ok {
		slog.WarnContext(c.Request().Context(), "Stream connection rejected", "reason", reason, "remote_ip", ip)
		return apperrors.UnavailableError("too many stream connections").WithField("reason", string(reason))
	}
	defer s.streamLimits.release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return nil
	}
	_ = s.hub.Serve(c.Request().Context(), id, conn)
	return nil
}

// centrifugeAuthMiddleware passes the requested session to the node as the connection's user ID.
// The node's connect handler checks that the session exists.
func centrifugeAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("session")
		if raw == "" {
			http.Error(w, "missing session parameter", http.StatusBadRequest)
			return
		}
		if _, err := uuid.Parse(raw); err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}

		ctx := centrifuge.SetCredentials(r.Context(), &centrifuge.Credentials{UserID: raw})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
