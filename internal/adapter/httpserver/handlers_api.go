package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/fusion"
	"github.com/pscheid92/emofusion/internal/platform/config"
	apperrors "github.com/pscheid92/emofusion/internal/platform/errors"
)

const maxHistory = 500

type textRequest struct {
	Text string `json:"text"`
}

type sessionResponse struct {
	Session       uuid.UUID `json:"session"`
	Viewers       int       `json:"viewers"`
	StreamClients int       `json:"streamClients"`
}

func (s *Server) registerAPIRoutes() {
	ingest := newRateLimiter(s.config.IngestRatePerSecond, s.config.IngestBurst)

	api := s.echo.Group("/api/sessions")
	api.POST("", s.handleCreateSession)
	api.GET("/:id", s.handleGetSession)
	api.DELETE("/:id", s.handleStopSession)
	api.POST("/:id/face", s.handleSubmitFace, ingest)
	api.POST("/:id/voice", s.handleSubmitVoice, ingest)
	api.POST("/:id/text", s.handleSubmitText, ingest)
	api.POST("/:id/text/vector", s.handleSubmitTextVector, ingest)
	api.GET("/:id/fusion", s.handleLatest)
	api.GET("/:id/trend", s.handleTrend)
	api.GET("/:id/history", s.handleHistory)
	api.GET("/:id/snapshot", s.handleSnapshot)
}

func sessionParam(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid session id").WithField("session", raw)
	}
	return id, nil
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCreateSession(c echo.Context) error {
	id, err := s.app.CreateSession(c.Request().Context())
	if err != nil {
		return domainError(err, uuid.Nil)
	}
	return writeJSON(c, http.StatusCreated, sessionResponse{Session: id})
}

func (s *Server) handleGetSession(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	if _, _, err := s.app.Latest(id); err != nil {
		return domainError(err, id)
	}

	resp := sessionResponse{Session: id, StreamClients: s.hub.ClientCount(id)}
	if s.viewers != nil {
		resp.Viewers = s.viewers.Viewers(id)
	}
	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleStopSession(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	if err := s.app.StopSession(c.Request().Context(), id); err != nil {
		return domainError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSubmitFace(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	var frame domain.BlendshapeFrame
	if err := c.Bind(&frame); err != nil {
		return apperrors.ValidationError("invalid blendshape frame").WithCause(err)
	}
	if err := s.app.SubmitFace(id, frame); err != nil {
		return domainError(err, id)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSubmitVoice(c echo.Context) error {
	return s.submitVector(c, s.app.SubmitVoice)
}

func (s *Server) handleSubmitTextVector(c echo.Context) error {
	return s.submitVector(c, s.app.SubmitTextVector)
}

func (s *Server) submitVector(c echo.Context, submit func(uuid.UUID, domain.EmotionVector) error) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	var v domain.EmotionVector
	if err := c.Bind(&v); err != nil {
		return apperrors.ValidationError("invalid emotion vector").WithCause(err)
	}
	if err := submit(id, v); err != nil {
		return domainError(err, id)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSubmitText(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid text request").WithCause(err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.ValidationError("text must not be empty").WithField("session", id.String())
	}
	if err := s.app.SubmitText(id, req.Text); err != nil {
		return domainError(err, id)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleLatest(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	result, ok, err := s.app.Latest(id)
	if err != nil {
		return domainError(err, id)
	}
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return writeJSON(c, http.StatusOK, result)
}

func (s *Server) handleTrend(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}

	var sizes []int
	if raw := c.QueryParam("windows"); raw != "" {
		sizes, err = config.ParseWindows(raw)
		if err != nil {
			return apperrors.ValidationError(err.Error()).WithField("windows", raw)
		}
	}

	points, err := s.app.Trend(id, sizes)
	if err != nil {
		return domainError(err, id)
	}
	return writeJSON(c, http.StatusOK, points)
}

func (s *Server) handleHistory(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}

	n := fusion.DisplayHistoryCapacity
	if raw := c.QueryParam("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistory {
			return apperrors.ValidationError(fmt.Sprintf("n must be between 1 and %d", maxHistory)).WithField("n", raw)
		}
	}

	samples, err := s.app.History(id, n)
	if err != nil {
		return domainError(err, id)
	}
	if samples == nil {
		samples = []domain.ModalitySample{}
	}
	return writeJSON(c, http.StatusOK, samples)
}

// handleSnapshot serves the last published update from the shared store, so any instance can
// answer for a session running elsewhere.
func (s *Server) handleSnapshot(c echo.Context) error {
	id, err := sessionParam(c)
	if err != nil {
		return err
	}
	if s.snapshots == nil {
		return apperrors.NotFoundError("snapshots are not enabled")
	}

	update, err := s.snapshots.Snapshot(c.Request().Context(), id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return apperrors.NotFoundError("no snapshot for session").WithField("session", id.String())
	}
	if err != nil {
		return apperrors.ExternalError("snapshot store unavailable", err).WithField("session", id.String())
	}
	return writeJSON(c, http.StatusOK, update)
}
