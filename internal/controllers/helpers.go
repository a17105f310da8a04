package controllers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bluefin-labs/enterprise-api/internal/middleware"
)

var validate = validator.New()

// getUserIDFromContext parses the authenticated user ID placed on the
// request context by the auth middleware.
func getUserIDFromContext(r *http.Request) *uuid.UUID {
	userID, ok := r.Context().Value(middleware.ContextKeyUserID).(string)
	if !ok || userID == "" {
		return nil
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return nil
	}
	return &parsed
}
