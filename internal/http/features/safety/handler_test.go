package safety

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/localgroup/internal/http/middleware"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/events"
	"github.com/tendant/localgroup/pkg/gate"
	"github.com/tendant/localgroup/pkg/repository/memstore"
	"github.com/tendant/localgroup/pkg/safety"
)

func TestSOS(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	creator, outsider := uuid.New(), uuid.New()

	newGroup := func(status domain.GroupStatus) uuid.UUID {
		g := &domain.Group{
			ID:         uuid.New(),
			CreatorID:  creator,
			PlaceID:    uuid.New(),
			DateTime:   time.Now(),
			MaxSize:    4,
			Visibility: domain.VisibilityPublic,
			Status:     status,
		}
		if err := store.CreateGroup(ctx, g, &domain.GroupMember{GroupID: g.ID, UserID: creator, Confirmed: true}); err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}
		return g.ID
	}
	active := newGroup(domain.GroupStatusActive)
	joinable := newGroup(domain.GroupStatusJoinable)

	svc := safety.NewService(gate.New(store, store), store, &events.Recorder{}, events.NewSubjects("test"), logger)
	r := chi.NewRouter()
	r.Post("/v1/safety/sos/{id}", NewHandler(logger, svc).SOS)

	tests := []struct {
		name       string
		userID     uuid.UUID
		groupID    uuid.UUID
		wantStatus int
	}{
		{"member of active group", creator, active, http.StatusCreated},
		{"group not active", creator, joinable, http.StatusConflict},
		{"outsider", outsider, active, http.StatusForbidden},
		{"unknown group", creator, uuid.New(), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/safety/sos/"+tt.groupID.String(), nil)
			req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, tt.userID))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if w.Code != http.StatusCreated {
				return
			}
			var resp SOSResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Status != string(domain.SafetyEventOpen) {
				t.Errorf("status = %q, want OPEN", resp.Status)
			}
			if resp.Notice != safety.Notice {
				t.Errorf("notice = %q, want %q", resp.Notice, safety.Notice)
			}
		})
	}

	stored, err := store.ListSafetyEvents(ctx, active)
	if err != nil {
		t.Fatalf("ListSafetyEvents: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored events = %d, want 1", len(stored))
	}
}
