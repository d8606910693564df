package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/localgroup/internal/httputil"
)

func TestRequestSizeLimit(t *testing.T) {
	handler := RequestSizeLimit(64)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		if err := httputil.DecodeJSON(r, &body); err != nil {
			if errors.Is(err, httputil.ErrBodyTooLarge) {
				httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
				return
			}
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		content    int
		wantStatus int
	}{
		{"small body accepted", 10, http.StatusOK},
		{"too large rejected", 200, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"content":"` + string(bytes.Repeat([]byte("a"), tt.content)) + `"}`
			req := httptest.NewRequest("POST", "/v1/groups/x/messages", bytes.NewReader([]byte(body)))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequestSizeLimit_Zero(t *testing.T) {
	handler := RequestSizeLimit(0)(okHandler())
	req := httptest.NewRequest("POST", "/test", bytes.NewReader(bytes.Repeat([]byte("a"), 1<<16)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
