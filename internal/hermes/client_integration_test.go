//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_ReportEventRoundTrip(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	client, err := NewClient(context.Background(), natsURL, os.Getenv("NATS_TOKEN"), slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan ReportGeneratedEvent, 1)
	err = client.Subscribe(SubjectReportGenerated, func(subject string, data []byte) {
		var evt ReportGeneratedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Errorf("bad payload on %s: %v", subject, err)
			return
		}
		received <- evt
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	sent := ReportGeneratedEvent{ReportID: "it-1", SourceRef: "integration.log", Users: 1, Exchanges: 2}
	if err := client.Publish(SubjectReportGenerated, sent); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case evt := <-received:
		if evt.ReportID != "it-1" || evt.Exchanges != 2 {
			t.Errorf("unexpected event %+v", evt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for report event")
	}
}
