package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/platform/correlation"
	apperrors "github.com/pscheid92/emofusion/internal/platform/errors"
)

// correlationMiddleware adopts the caller's correlation ID when it is well formed and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromRequest(c.Request())
		c.SetRequest(c.Request().WithContext(correlation.WithID(c.Request().Context(), id)))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// Router errors (404, 405) keep echo's own handling.
			var appErr *apperrors.Error
			var httpErr *echo.HTTPError
			if !errors.As(err, &appErr) && errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict, apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Request refused", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

// domainError translates engine errors into structured API errors.
func domainError(err error, session uuid.UUID) error {
	var out *apperrors.Error
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		out = apperrors.NotFoundError("session not found")
	case errors.Is(err, domain.ErrNoDetection):
		out = apperrors.ValidationError("input contains no detection")
	case errors.Is(err, domain.ErrInvalidVector):
		out = apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrTooManySessions):
		return apperrors.UnavailableError("session limit reached").WithCause(err)
	case errors.Is(err, domain.ErrUnsupported):
		out = apperrors.ConflictError("input channel not enabled for this session")
	default:
		out = apperrors.InternalError("request failed", err)
	}
	return out.WithField("session", session.String())
}
