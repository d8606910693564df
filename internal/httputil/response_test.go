package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusConflict, "group is full")

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "group is full" {
		t.Errorf("error = %q, want %q", body.Error, "group is full")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		InviteCode string `json:"invite_code"`
	}

	tests := []struct {
		name    string
		body    string
		limit   int64
		want    string
		wantErr error
		anyErr  bool
	}{
		{name: "valid", body: `{"invite_code":"abc123"}`, want: "abc123"},
		{name: "empty body", body: ``},
		{name: "unknown field", body: `{"code":"x"}`, anyErr: true},
		{name: "malformed", body: `{`, anyErr: true},
		{name: "too large", body: `{"invite_code":"` + strings.Repeat("a", 100) + `"}`, limit: 10, wantErr: ErrBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.limit > 0 {
				r.Body = http.MaxBytesReader(httptest.NewRecorder(), r.Body, tt.limit)
			}
			var p payload
			err := DecodeJSON(r, &p)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("DecodeJSON() error = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("DecodeJSON() error = nil, want an error")
				}
			default:
				if err != nil {
					t.Fatalf("DecodeJSON() error = %v", err)
				}
				if p.InviteCode != tt.want {
					t.Errorf("InviteCode = %q, want %q", p.InviteCode, tt.want)
				}
			}
		})
	}
}

func TestGetAccessTokenFromCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := GetAccessTokenFromCookie(r); ok {
		t.Error("GetAccessTokenFromCookie() ok = true without a cookie")
	}

	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "tok"})
	if got, ok := GetAccessTokenFromCookie(r); !ok || got != "tok" {
		t.Errorf("GetAccessTokenFromCookie() = %q, %v; want tok, true", got, ok)
	}
}
