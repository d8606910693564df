package chat

import (
	"log/slog"
	"net/http"

	"github.com/tendant/localgroup/internal/http/features/common"
	"github.com/tendant/localgroup/internal/http/middleware"
	"github.com/tendant/localgroup/internal/httputil"
	"github.com/tendant/localgroup/pkg/chat"
)

// Handler handles group chat endpoints.
type Handler struct {
	logger *slog.Logger
	chat   *chat.Service
}

// NewHandler creates a new chat handler.
func NewHandler(logger *slog.Logger, svc *chat.Service) *Handler {
	return &Handler{logger: logger, chat: svc}
}

// SendRequest represents a chat message.
type SendRequest struct {
	Content string `json:"content"`
}

// Send broadcasts a message to an active group.
// POST /v1/groups/{id}/messages
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
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

	var req SendRequest
	if !common.DecodeRequest(w, r, &req) {
		return
	}

	msg, err := h.chat.Send(r.Context(), groupID, userID, req.Content)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusAccepted, msg)
}
