// Package handlers holds the HTTP layer: the open WAHA webhook, the
// authenticated buffer and history admin routes, and login.
package handlers

// ErrorResponse is the JSON body returned for handler errors.
type ErrorResponse struct {
	Message string `json:"message"`
}
