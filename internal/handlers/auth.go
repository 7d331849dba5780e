package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/zapbotio/zapbot/internal/auth"
)

// AuthHandler issues JWTs for the single configured admin account. The
// password is bcrypt-hashed once at construction so login compares against
// a hash, never the raw config value.
type AuthHandler struct {
	username     string
	passwordHash []byte
	jwtSecret    string
	expiresIn    time.Duration
	logger       *slog.Logger
}

func NewAuthHandler(log *slog.Logger, username, password, jwtSecret string, expiresIn time.Duration) (*AuthHandler, error) {
	if log == nil {
		log = slog.Default()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{
		username:     username,
		passwordHash: hash,
		jwtSecret:    jwtSecret,
		expiresIn:    expiresIn,
		logger:       log.With(slog.String("handler", "auth")),
	}, nil
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login validates admin credentials and returns a signed token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	passwordOK := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(req.Password)) == nil
	if !usernameOK || !passwordOK {
		h.logger.Warn("login rejected", slog.String("username", req.Username))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := auth.GenerateToken(h.username, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
