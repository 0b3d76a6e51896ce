package bridge

import (
	"net/http"
	"testing"

	"github.com/omtlabs/marketing-bridge/internal/marketing"
)

func TestTranslateFailure(t *testing.T) {
	tests := []struct {
		category    marketing.FailureCategory
		wantStatus  int
		wantMessage string
	}{
		{marketing.FailureAuth, http.StatusUnauthorized, "invalid credentials"},
		{marketing.FailureTransport, http.StatusBadGateway, "upstream unreachable"},
		{marketing.FailureBackend, http.StatusBadGateway, "backend failure"},
		{marketing.FailureTimeout, http.StatusGatewayTimeout, "upstream timeout"},
		{marketing.FailureValidation, http.StatusBadRequest, "invalid query or backend response"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			ce := TranslateFailure(&marketing.Failure{Category: tt.category})
			if ce.Status != tt.wantStatus {
				t.Errorf("status: expected %d, got %d", tt.wantStatus, ce.Status)
			}
			if ce.Message != tt.wantMessage {
				t.Errorf("message: expected %q, got %q", tt.wantMessage, ce.Message)
			}
		})
	}
}

func TestTranslateFailureUnknownCategory(t *testing.T) {
	ce := TranslateFailure(&marketing.Failure{Category: "cosmic-rays"})
	if ce.Status != http.StatusInternalServerError {
		t.Errorf("expected 500 for an unknown category, got %d", ce.Status)
	}
}

func TestErrorPayloadPrefersUpstreamStatus(t *testing.T) {
	payload := ErrorPayload(&marketing.Failure{
		Category:       marketing.FailureBackend,
		Detail:         "upstream returned 503",
		UpstreamStatus: 503,
	})

	if payload["status"] != 503 {
		t.Errorf("expected the upstream status, got %v", payload["status"])
	}
	if payload["category"] != "backend" {
		t.Errorf("unexpected category %v", payload["category"])
	}
	if payload["detail"] != "upstream returned 503" {
		t.Errorf("unexpected detail %v", payload["detail"])
	}
}

func TestErrorPayloadFallsBackToTranslatedStatus(t *testing.T) {
	payload := ErrorPayload(&marketing.Failure{
		Category: marketing.FailureTimeout,
		Detail:   "context deadline exceeded",
	})

	if payload["status"] != http.StatusGatewayTimeout {
		t.Errorf("expected 504 when no upstream status was observed, got %v", payload["status"])
	}
}
