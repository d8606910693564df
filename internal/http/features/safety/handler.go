package safety

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/localgroup/internal/http/features/common"
	"github.com/tendant/localgroup/internal/http/middleware"
	"github.com/tendant/localgroup/internal/httputil"
	"github.com/tendant/localgroup/pkg/safety"
)

// Handler handles safety endpoints.
type Handler struct {
	logger *slog.Logger
	safety *safety.Service
}

// NewHandler creates a new safety handler.
func NewHandler(logger *slog.Logger, svc *safety.Service) *Handler {
	return &Handler{logger: logger, safety: svc}
}

// SOSResponse acknowledges a recorded alert.
type SOSResponse struct {
	EventID   string    `json:"event_id"`
	GroupID   string    `json:"group_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Notice    string    `json:"notice"`
}

// SOS raises a safety alert in an active group.
// POST /v1/safety/sos/{id}
func (h *Handler) SOS(w http.ResponseWriter, r *http.Request) {
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

	e, err := h.safety.TriggerSOS(r.Context(), groupID, userID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, SOSResponse{
		EventID:   e.ID.String(),
		GroupID:   e.GroupID.String(),
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		Notice:    safety.Notice,
	})
}
