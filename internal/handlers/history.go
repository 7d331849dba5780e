package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zapbotio/zapbot/internal/history"
)

// HistoryHandler exposes the conversation history log for operators.
type HistoryHandler struct {
	service *history.Service
	logger  *slog.Logger
}

func NewHistoryHandler(log *slog.Logger, service *history.Service) *HistoryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HistoryHandler{
		service: service,
		logger:  log.With(slog.String("handler", "history")),
	}
}

func (h *HistoryHandler) Register(e *echo.Echo) {
	e.GET("/api/history/:chat_id", h.Get)
	e.DELETE("/api/history/:chat_id", h.Delete)
}

type historyResponse struct {
	ChatID string         `json:"chat_id"`
	Count  int            `json:"count"`
	Items  []history.Turn `json:"items"`
}

// Get returns up to limit recent turns for a chat, oldest first.
func (h *HistoryHandler) Get(c echo.Context) error {
	chatID := c.Param("chat_id")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	turns, err := h.service.Recent(c.Request().Context(), chatID, limit)
	if err != nil {
		return mapHistoryError(err)
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	return c.JSON(http.StatusOK, historyResponse{ChatID: chatID, Count: len(turns), Items: turns})
}

// Delete wipes the history log for a chat.
func (h *HistoryHandler) Delete(c echo.Context) error {
	chatID := c.Param("chat_id")
	if err := h.service.Clear(c.Request().Context(), chatID); err != nil {
		return mapHistoryError(err)
	}
	h.logger.Info("history cleared", slog.String("chat_id", chatID))
	return c.NoContent(http.StatusNoContent)
}

func mapHistoryError(err error) error {
	if errors.Is(err, history.ErrInvalidArgument) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, history.ErrStoreUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history store unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
