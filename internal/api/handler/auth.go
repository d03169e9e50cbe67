package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/richboost/boosting-core/internal/api/middleware"
	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/service"
)

// AuthHandler issues development tokens. There is no password flow; a
// caller presents an existing account id and role and gets a signed JWT.
type AuthHandler struct {
	accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Token handles POST /v1/auth/token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
		return
	}

	switch req.Role {
	case domain.RoleCustomer:
		if _, err := h.accounts.GetCustomer(r.Context(), uid); err != nil {
			if errors.Is(err, service.ErrCustomerNotFound) {
				RespondError(w, r, http.StatusNotFound, "auth/unknown-account", "Customer not found")
				return
			}
			RespondError(w, r, http.StatusInternalServerError, "auth/lookup-failed", "Failed to verify account")
			return
		}
	case domain.RoleWorker:
		if _, err := h.accounts.GetWorker(r.Context(), uid); err != nil {
			if errors.Is(err, service.ErrWorkerNotFound) {
				RespondError(w, r, http.StatusNotFound, "auth/unknown-account", "Worker not found")
				return
			}
			RespondError(w, r, http.StatusInternalServerError, "auth/lookup-failed", "Failed to verify account")
			return
		}
	case domain.RoleAdmin:
		// Admin identities are not persisted; any uuid works in development.
	default:
		RespondError(w, r, http.StatusBadRequest, "request/invalid-role", "role must be customer, worker or admin")
		return
	}

	claims := jwt.MapClaims{
		"user_id": uid.String(),
		"role":    req.Role,
		"sub":     uid.String(),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	if iss := middleware.JWTIssuer(); iss != "" {
		claims["iss"] = iss
	}
	if aud := middleware.JWTAudience(); aud != "" {
		claims["aud"] = aud
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(middleware.JWTSecret())
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "auth/sign-failed", "Failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}
