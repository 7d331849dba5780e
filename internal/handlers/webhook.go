package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zapbotio/zapbot/internal/buffer"
	"github.com/zapbotio/zapbot/internal/waha"
)

// WebhookHandler receives WAHA event callbacks and feeds inbound message
// fragments into the buffer service. The route is open: WAHA does not sign
// its callbacks, so the endpoint only parses and filters.
type WebhookHandler struct {
	service *buffer.Service
	logger  *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, service *buffer.Service) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		service: service,
		logger:  log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Receive)
}

type webhookResponse struct {
	Status string `json:"status"`
}

// Receive handles one WAHA callback. Events that are not inbound user
// messages are acknowledged without buffering so WAHA does not retry them.
func (h *WebhookHandler) Receive(c echo.Context) error {
	var event waha.WebhookEvent
	if err := c.Bind(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}

	if event.Event != waha.EventMessage {
		h.logger.Debug("ignoring event", slog.String("event", event.Event))
		return c.JSON(http.StatusOK, webhookResponse{Status: "ignored"})
	}
	payload := event.Payload
	if payload.FromMe {
		return c.JSON(http.StatusOK, webhookResponse{Status: "ignored"})
	}
	if payload.IsGroup() {
		h.logger.Debug("ignoring group message", slog.String("chat_id", payload.From))
		return c.JSON(http.StatusOK, webhookResponse{Status: "ignored"})
	}
	if payload.From == "" || strings.TrimSpace(payload.Body) == "" {
		return c.JSON(http.StatusOK, webhookResponse{Status: "ignored"})
	}

	if err := h.service.BufferFragment(c.Request().Context(), payload.From, payload.Body); err != nil {
		if errors.Is(err, buffer.ErrInvalidArgument) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, buffer.ErrStoreUnavailable) {
			h.logger.Error("buffering failed", slog.String("chat_id", payload.From), slog.Any("error", err))
			return echo.NewHTTPError(http.StatusServiceUnavailable, "buffer store unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, webhookResponse{Status: "buffered"})
}
