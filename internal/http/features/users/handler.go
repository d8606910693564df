package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/internal/http/features/common"
	"github.com/tendant/localgroup/internal/http/middleware"
	"github.com/tendant/localgroup/internal/httputil"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/trust"
)

// Store reads user profiles and maintains block lists.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Block(ctx context.Context, ownerID, userID uuid.UUID) error
}

// Handler handles the caller's trust score and block list.
type Handler struct {
	logger  *slog.Logger
	ledger *trust.Ledger
	users  Store
}

// NewHandler creates a new users handler.
func NewHandler(logger *slog.Logger, ledger *trust.Ledger, users Store) *Handler {
	return &Handler{logger: logger, ledger: ledger, users: users}
}

// ProfileResponse represents the caller's profile. CreatedAt is omitted for
// users with no stored profile yet.
type ProfileResponse struct {
	ID           string     `json:"id"`
	TrustScore   int        `json:"trust_score"`
	BlockedUsers []string   `json:"blocked_users"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// GetMe returns the caller's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := ProfileResponse{ID: userID.String(), BlockedUsers: []string{}}

	user, err := h.users.GetUser(r.Context(), userID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		// Profiles are created on first score change or block.
	case err != nil:
		common.WriteError(w, h.logger, err)
		return
	default:
		resp.TrustScore = user.TrustScore
		for _, id := range user.BlockedUsers {
			resp.BlockedUsers = append(resp.BlockedUsers, id.String())
		}
		createdAt := user.CreatedAt.UTC()
		resp.CreatedAt = &createdAt
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// TrustScoreResponse represents the caller's trust score.
type TrustScoreResponse struct {
	UserID     string `json:"user_id"`
	TrustScore int    `json:"trust_score"`
}

// TrustScore returns the caller's trust score.
// GET /v1/me/trust-score
func (h *Handler) TrustScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	score, err := h.ledger.Score(r.Context(), userID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, TrustScoreResponse{UserID: userID.String(), TrustScore: score})
}

// Block adds a user to the caller's block list. Blocking twice is a no-op.
// POST /v1/users/block/{userId}
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	target, ok := common.PathUUID(r, "userId")
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if target == userID {
		httputil.Error(w, http.StatusBadRequest, "cannot block yourself")
		return
	}

	if err := h.users.Block(r.Context(), userID, target); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user blocked", "user_id", userID, "blocked_user_id", target)
	w.WriteHeader(http.StatusNoContent)
}
