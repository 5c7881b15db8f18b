package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestWebhookLifecycle(t *testing.T) {
	now := time.Now()
	e, err := NewWebhookEvent("wh-1", "bkash", "payment.success", []byte(`{}`), nil, "sig", now)
	if err != nil {
		t.Fatalf("NewWebhookEvent failed: %v", err)
	}
	if e.Status != WebhookReceived {
		t.Errorf("Expected RECEIVED, got %s", e.Status)
	}

	if err := e.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if err := e.MarkProcessed(now); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if e.ProcessedAt == nil {
		t.Error("Expected processed timestamp")
	}

	// PROCESSED is terminal.
	if err := e.MarkProcessing(); !errors.Is(err, ErrInvalidWebhookTransition) {
		t.Errorf("Expected ErrInvalidWebhookTransition, got %v", err)
	}
}

func TestWebhookRetryCountsAttempts(t *testing.T) {
	now := time.Now()
	e, err := NewWebhookEvent("wh-2", "nagad", "payment.success", nil, nil, "", now)
	if err != nil {
		t.Fatalf("NewWebhookEvent failed: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		if err := e.MarkProcessing(); err != nil {
			t.Fatalf("MarkProcessing attempt %d failed: %v", attempt, err)
		}
		if err := e.MarkFailed(); err != nil {
			t.Fatalf("MarkFailed attempt %d failed: %v", attempt, err)
		}
		if e.RetryCount != attempt {
			t.Errorf("Expected retry count %d, got %d", attempt, e.RetryCount)
		}
	}
	if e.Status != WebhookFailed {
		t.Errorf("Expected FAILED, got %s", e.Status)
	}
}

func TestWebhookValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewWebhookEvent("", "bkash", "t", nil, nil, "", now); err == nil {
		t.Error("Expected error for empty webhook id")
	}
	if _, err := NewWebhookEvent("wh-1", "", "t", nil, nil, "", now); err == nil {
		t.Error("Expected error for empty provider")
	}
}
