package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/relaypoint/console/internal/conn"
	"github.com/relaypoint/console/internal/stream"
	"github.com/relaypoint/console/internal/upload"
	"github.com/relaypoint/console/internal/voice"
)

// InitRoutes wires the local read-only status surface. It serves whatever
// shell hosts the console: connection state, the message log, the pending
// attachment batch, and the recording session, plus the manual connection
// retry action.
func InitRoutes(
	e *echo.Echo,
	manager *conn.Manager,
	messages *stream.Stream,
	uploads *upload.Coordinator,
	recorder *voice.Engine,
	logger *zap.Logger,
) {
	// Every error leaves the surface in the same JSON shape.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "internal error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		} else {
			logger.Error("Unhandled request error", zap.Error(err))
		}
		if !c.Response().Committed {
			if err := c.JSON(code, ErrorResponse{Error: http.StatusText(code), Message: message}); err != nil {
				logger.Error("Failed to write error response", zap.Error(err))
			}
		}
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "relaypoint-console",
		})
	})

	v1 := e.Group("/api/v1")

	v1.GET("/connection", func(c echo.Context) error {
		return c.JSON(http.StatusOK, ConnectionResponse{ConnectionSnapshot: manager.Snapshot()})
	})

	// Manual retry, alongside the automatic backoff.
	v1.POST("/connection/retry", func(c echo.Context) error {
		logger.Info("Manual reconnect requested")
		manager.Connect()
		return c.JSON(http.StatusAccepted, ConnectionResponse{ConnectionSnapshot: manager.Snapshot()})
	})

	v1.GET("/messages", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MessagesResponse{Messages: messages.Snapshot()})
	})

	// Explicit user action only.
	v1.DELETE("/messages", func(c echo.Context) error {
		logger.Info("History cleared by operator")
		messages.Clear()
		return c.NoContent(http.StatusNoContent)
	})

	v1.GET("/attachments", func(c echo.Context) error {
		return c.JSON(http.StatusOK, AttachmentsResponse{Attachments: uploads.Snapshot()})
	})

	v1.DELETE("/attachments/:id", func(c echo.Context) error {
		uploads.Remove(c.Param("id"))
		return c.NoContent(http.StatusNoContent)
	})

	v1.GET("/recording", func(c echo.Context) error {
		session := recorder.Snapshot()
		resp := RecordingResponse{RecordingSession: session}
		if session.Active() {
			resp.ElapsedSeconds = session.ElapsedSeconds()
		}
		return c.JSON(http.StatusOK, resp)
	})
}
