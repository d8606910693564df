package groups

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/internal/http/features/common"
	"github.com/tendant/localgroup/internal/http/middleware"
	"github.com/tendant/localgroup/internal/httputil"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/group"
)

// Handler handles group membership endpoints.
type Handler struct {
	logger   *slog.Logger
	registry *group.Registry
}

// NewHandler creates a new groups handler.
func NewHandler(logger *slog.Logger, registry *group.Registry) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// CreateRequest represents a group creation request.
type CreateRequest struct {
	PlaceID    uuid.UUID         `json:"place_id"`
	DateTime   time.Time         `json:"date_time"`
	MaxSize    int               `json:"max_size"`
	Visibility domain.Visibility `json:"visibility"`
	InviteCode string            `json:"invite_code,omitempty"`
}

// JoinPrivateRequest carries the invite code for a private group.
type JoinPrivateRequest struct {
	InviteCode string `json:"invite_code"`
}

// MemberResponse is one member of a group.
type MemberResponse struct {
	UserID    string    `json:"user_id"`
	Confirmed bool      `json:"confirmed"`
	JoinedAt  time.Time `json:"joined_at"`
}

// GroupResponse represents a group. Members is only set on snapshot replies.
type GroupResponse struct {
	ID          string           `json:"id"`
	CreatorID   string           `json:"creator_id"`
	PlaceID     string           `json:"place_id"`
	DateTime    time.Time        `json:"date_time"`
	MaxSize     int              `json:"max_size"`
	Visibility  string           `json:"visibility"`
	Status      string           `json:"status"`
	MemberCount int              `json:"member_count"`
	Members     []MemberResponse `json:"members,omitempty"`
}

func groupResponse(g *domain.Group) GroupResponse {
	return GroupResponse{
		ID:         g.ID.String(),
		CreatorID:  g.CreatorID.String(),
		PlaceID:    g.PlaceID.String(),
		DateTime:   g.DateTime.UTC(),
		MaxSize:    g.MaxSize,
		Visibility: string(g.Visibility),
		Status:     string(g.Status),
	}
}

func snapshotResponse(s *group.Snapshot) GroupResponse {
	resp := groupResponse(s.Group)
	resp.MemberCount = s.MemberCount()
	resp.Members = make([]MemberResponse, 0, len(s.Members))
	for _, m := range s.Members {
		resp.Members = append(resp.Members, MemberResponse{
			UserID:    m.UserID.String(),
			Confirmed: m.Confirmed,
			JoinedAt:  m.JoinedAt.UTC(),
		})
	}
	return resp
}

// Create creates a group owned by the caller.
// POST /v1/groups
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRequest
	if !common.DecodeRequest(w, r, &req) {
		return
	}
	if req.PlaceID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "place_id is required")
		return
	}

	snap, err := h.registry.CreateGroup(r.Context(), group.CreateGroupInput{
		CreatorID:  userID,
		PlaceID:    req.PlaceID,
		DateTime:   req.DateTime,
		MaxSize:    req.MaxSize,
		Visibility: req.Visibility,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, snapshotResponse(snap))
}

// Get returns a group snapshot.
// GET /v1/groups/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	groupID, ok := common.PathUUID(r, "id")
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	snap, err := h.registry.Get(r.Context(), groupID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, snapshotResponse(snap))
}

// MyGroups lists the groups the caller belongs to.
// GET /v1/me/groups
func (h *Handler) MyGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.registry.ListByUser(r.Context(), userID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	resp := make([]GroupResponse, 0, len(list))
	for _, g := range list {
		resp = append(resp, groupResponse(g))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"groups": resp})
}

// Join adds the caller to a group.
// POST /v1/groups/{id}/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.registry.Join)
}

// Leave removes the caller from a group.
// POST /v1/groups/{id}/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.registry.Leave)
}

// Confirm confirms the caller's attendance.
// POST /v1/groups/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.registry.Confirm)
}

// JoinPrivate adds the caller to a private group after checking the invite code.
// POST /v1/groups/{id}/join-private
func (h *Handler) JoinPrivate(w http.ResponseWriter, r *http.Request) {
	var req JoinPrivateRequest
	if !common.DecodeRequest(w, r, &req) {
		return
	}
	if req.InviteCode == "" {
		httputil.Error(w, http.StatusBadRequest, "invite_code is required")
		return
	}

	h.mutate(w, r, func(ctx context.Context, userID, groupID uuid.UUID) (*group.Snapshot, error) {
		return h.registry.JoinPrivate(ctx, userID, groupID, req.InviteCode)
	})
}

type mutation func(ctx context.Context, userID, groupID uuid.UUID) (*group.Snapshot, error)

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn mutation) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, ok := common.PathUUID(r, "id")
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	snap, err := fn(r.Context(), userID, groupID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, snapshotResponse(snap))
}
