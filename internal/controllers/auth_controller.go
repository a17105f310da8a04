package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/bluefin-labs/enterprise-api/internal/dtos"
	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/repositories"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

type AuthController struct {
	userRepo repositories.UserRepository
}

func NewAuthController(userRepo repositories.UserRepository) *AuthController {
	return &AuthController{userRepo: userRepo}
}

// Register creates a passwordless account. The user cannot sign in
// until a passkey is registered.
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid registration fields", nil, err)
		return
	}

	user := &models.User{
		ID:       uuid.New(),
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		IsActive: true,
	}
	if err := c.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, utils.ErrUserExists) {
			utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, "Username or email already taken", nil)
			return
		}
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to create user", nil, err)
		return
	}

	utils.Logger.Infof("Registered new user %s", user.Username)
	utils.RespondWithJSON(w, http.StatusCreated, dtos.NewUserFromModel(*user))
}

// Me returns the authenticated user's profile.
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r)
	if userID == nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", nil)
		return
	}

	user, err := c.userRepo.GetByID(r.Context(), *userID)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to load user", nil, err)
		return
	}
	if user == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "User not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.NewUserFromModel(*user))
}
