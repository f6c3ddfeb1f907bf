package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInboundSMSHandler_MasksSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := NewInboundSMSHandler(logger, fakeVerifier{ok: true})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, inboundSMSRequest())

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.Contains(buf.String(), "919876543210") {
		t.Errorf("log should not contain the full sender number: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "********3210") {
		t.Errorf("log should contain the masked sender number: %s", buf.String())
	}
}

func TestMaskNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"123", "***"},
		{"1234", "****"},
		{"14155550100", "*******0100"},
	}
	for _, tt := range tests {
		if got := maskNumber(tt.in); got != tt.want {
			t.Errorf("maskNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
