package ledger

import (
	"errors"
	"strings"
	"testing"
	"time"

	"settlement-ledger-go/internal/money"
)

func newTestRefund(t *testing.T) *Refund {
	t.Helper()
	r, err := NewRefund("pay-1", "bk-1", money.MinorUnits(3000), money.MinorUnits(10000),
		"BDT", "guest cancelled", time.Now())
	if err != nil {
		t.Fatalf("NewRefund failed: %v", err)
	}
	return r
}

func TestNewRefundValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewRefund("", "bk-1", 100, 1000, "BDT", "r", now); err == nil {
		t.Error("Expected error for empty payment id")
	}
	if _, err := NewRefund("pay-1", "bk-1", 0, 1000, "BDT", "r", now); err == nil {
		t.Error("Expected error for zero amount")
	}
	if _, err := NewRefund("pay-1", "bk-1", 1001, 1000, "BDT", "r", now); err == nil {
		t.Error("Expected error for amount exceeding original")
	}
	if _, err := NewRefund("pay-1", "bk-1", 1000, 1000, "BDT", "r", now); err != nil {
		t.Errorf("Full refund must be allowed: %v", err)
	}
}

func TestRefundReferenceFormat(t *testing.T) {
	r := newTestRefund(t)
	if !strings.HasPrefix(r.ReferenceNumber, "RF-") {
		t.Errorf("Expected RF- prefix, got %s", r.ReferenceNumber)
	}
}

func TestRefundHappyPath(t *testing.T) {
	now := time.Now()
	r := newTestRefund(t)

	if err := r.MarkProcessing(now); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if r.Status != RefundProcessing || r.ProcessingAt == nil {
		t.Errorf("After processing: status=%s", r.Status)
	}

	if err := r.MarkSucceeded("prov-ref-9", now); err != nil {
		t.Fatalf("MarkSucceeded failed: %v", err)
	}
	if r.Status != RefundSucceeded || r.ProviderRefundID != "prov-ref-9" || r.FinishedAt == nil {
		t.Errorf("After success: status=%s provider_refund=%s", r.Status, r.ProviderRefundID)
	}
}

func TestRefundInvalidTransitions(t *testing.T) {
	now := time.Now()
	r := newTestRefund(t)

	if err := r.MarkSucceeded("x", now); !errors.Is(err, ErrInvalidRefundTransition) {
		t.Errorf("Expected ErrInvalidRefundTransition, got %v", err)
	}
	if err := r.MarkFailed("x", now); !errors.Is(err, ErrInvalidRefundTransition) {
		t.Errorf("Expected ErrInvalidRefundTransition, got %v", err)
	}

	if err := r.MarkProcessing(now); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if err := r.MarkProcessing(now); !errors.Is(err, ErrInvalidRefundTransition) {
		t.Errorf("Expected double MarkProcessing to fail, got %v", err)
	}

	if err := r.MarkFailed("provider rejected", now); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if err := r.MarkSucceeded("x", now); !errors.Is(err, ErrInvalidRefundTransition) {
		t.Errorf("Expected transition out of FAILED to fail, got %v", err)
	}
}
