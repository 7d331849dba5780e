package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zapbotio/zapbot/internal/buffer"
)

// BufferHandler exposes read-only buffer introspection and registry
// maintenance for operators.
type BufferHandler struct {
	service *buffer.Service
	logger  *slog.Logger
}

func NewBufferHandler(log *slog.Logger, service *buffer.Service) *BufferHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BufferHandler{
		service: service,
		logger:  log.With(slog.String("handler", "buffer")),
	}
}

func (h *BufferHandler) Register(e *echo.Echo) {
	e.GET("/api/buffer/:chat_id/status", h.Status)
	e.GET("/api/buffer/timers", h.Timers)
	e.POST("/api/buffer/cleanup", h.Cleanup)
}

// Status returns the buffered fragments, TTL, and timer state for a chat.
func (h *BufferHandler) Status(c echo.Context) error {
	chatID := c.Param("chat_id")
	status, err := h.service.Status(c.Request().Context(), chatID)
	if err != nil {
		if errors.Is(err, buffer.ErrInvalidArgument) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, buffer.ErrStoreUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "buffer store unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

type timersResponse struct {
	Items []buffer.TimerSnapshot `json:"items"`
}

// Timers lists every tracked debounce timer entry.
func (h *BufferHandler) Timers(c echo.Context) error {
	items := h.service.Timers()
	if items == nil {
		items = []buffer.TimerSnapshot{}
	}
	return c.JSON(http.StatusOK, timersResponse{Items: items})
}

type cleanupResponse struct {
	Removed int `json:"removed"`
}

// Cleanup drops completed timer entries from the registry.
func (h *BufferHandler) Cleanup(c echo.Context) error {
	removed := h.service.Sweep()
	h.logger.Info("registry cleanup requested", slog.Int("removed", removed))
	return c.JSON(http.StatusOK, cleanupResponse{Removed: removed})
}
