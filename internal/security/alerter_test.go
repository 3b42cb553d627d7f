package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlerter(t *testing.T) *AuditAlerter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	alerter, err := NewAuditAlerter(client, "test:alerts")
	if err != nil {
		t.Fatalf("new alerter: %v", err)
	}
	return alerter
}

func TestAuditAlerterObserveTriggers(t *testing.T) {
	alerter := newTestAlerter(t)
	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		result, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered != (i == 10) {
			t.Fatalf("attempt %d: triggered = %v", i, result.Triggered)
		}
	}
}

func TestAuditAlerterWebhookThreshold(t *testing.T) {
	alerter := newTestAlerter(t)
	ctx := context.Background()
	var last AlertResult
	for i := 0; i < 5; i++ {
		var err error
		last, err = alerter.Observe(ctx, EventWebhook, OutcomeFail, "10.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	if !last.Triggered || last.Threshold != 5 {
		t.Fatalf("unexpected result: %+v", last)
	}
}

func TestAuditAlerterWindowsAreIndependent(t *testing.T) {
	alerter := newTestAlerter(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return base }
	for i := 0; i < 9; i++ {
		if _, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "127.0.0.1"); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	alerter.now = func() time.Time { return base.Add(10 * time.Minute) }
	result, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "127.0.0.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 1 {
		t.Fatalf("new window should start from one, got %+v", result)
	}
}

func TestAuditAlerterObserveIgnoresUnknownRule(t *testing.T) {
	alerter := newTestAlerter(t)
	result, err := alerter.Observe(context.Background(), "auth.custom", "success", "127.0.0.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 0 {
		t.Fatalf("unexpected result for unknown rule: %+v", result)
	}
}

func TestNilAlerterIsNoop(t *testing.T) {
	var alerter *AuditAlerter
	if _, err := alerter.Observe(context.Background(), EventLogin, OutcomeFail, "ip"); err != nil {
		t.Fatalf("nil alerter: %v", err)
	}
}
