package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

func TestSubjects(t *testing.T) {
	id := uuid.MustParse("6f1c1f5e-2d7a-4d35-9d0e-3a0b2b1c4d5e")

	tests := []struct {
		name   string
		prefix string
		got    func(Subjects) string
		want   string
	}{
		{
			name:   "status",
			prefix: "localgroup",
			got:    func(s Subjects) string { return s.GroupStatus(id) },
			want:   "localgroup.group.6f1c1f5e-2d7a-4d35-9d0e-3a0b2b1c4d5e.status",
		},
		{
			name:   "chat",
			prefix: "lg",
			got:    func(s Subjects) string { return s.Chat(id) },
			want:   "lg.chat.group.6f1c1f5e-2d7a-4d35-9d0e-3a0b2b1c4d5e",
		},
		{
			name:   "sos default prefix",
			prefix: "",
			got:    func(s Subjects) string { return s.SOS(id) },
			want:   "localgroup.safety.sos.6f1c1f5e-2d7a-4d35-9d0e-3a0b2b1c4d5e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got(NewSubjects(tt.prefix)); got != tt.want {
				t.Errorf("subject = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecorder_EncodesJSON(t *testing.T) {
	var rec Recorder
	ev := StatusChanged{
		GroupID: uuid.New(),
		From:    domain.GroupStatusConfirmation,
		To:      domain.GroupStatusActive,
		At:      time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC),
	}
	if err := rec.Publish(context.Background(), "x.status", ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := rec.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len(Messages()) = %d, want 1", len(msgs))
	}

	var got map[string]any
	if err := json.Unmarshal(msgs[0].Data, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["from"] != "CONFIRMATION" || got["to"] != "ACTIVE" {
		t.Errorf("payload = %v, want from CONFIRMATION to ACTIVE", got)
	}
	if got["group_id"] != ev.GroupID.String() {
		t.Errorf("group_id = %v, want %s", got["group_id"], ev.GroupID)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), "x", struct{}{}); err != nil {
		t.Errorf("Nop.Publish() error = %v", err)
	}
}

func TestNewNATSPublisher_RequiresServers(t *testing.T) {
	if _, err := NewNATSPublisher(NATSConfig{}, nil); err == nil {
		t.Error("NewNATSPublisher() with no servers should fail")
	}
}
