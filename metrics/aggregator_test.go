package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sampleRecord(success bool) Record {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Record{
		OperationID:     "op-1",
		TimestampStart:  start,
		TimestampEnd:    start.Add(100 * time.Millisecond),
		OperationType:   OperationUpload,
		WorkloadType:    WorkloadS3,
		ObjectKey:       "key-1",
		ObjectSizeBytes: 4096,
		Success:         success,
		ErrorCode:       "500",
		Driver:          "locust",
	}
}

func TestAggregatorObserveAndRender(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 3; i++ {
		agg.Observe(sampleRecord(true))
	}
	agg.Observe(sampleRecord(false))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	agg.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "chopsticks_operation_total") {
		t.Fatalf("expected operation_total family in output, got:\n%s", body)
	}
	if !strings.Contains(body, `operation="upload"`) {
		t.Fatalf("expected operation label in output, got:\n%s", body)
	}
	if !strings.Contains(body, `success="false"`) {
		t.Fatalf("expected a failed-record label set, got:\n%s", body)
	}
	if !strings.Contains(body, "chopsticks_operation_errors_total") {
		t.Fatalf("expected supplemental error counter family, got:\n%s", body)
	}
}

func TestAggregatorContentType(t *testing.T) {
	agg := NewAggregator()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	agg.Handler().ServeHTTP(rec, req)

	ct := rec.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q, want text/plain prefix", ct)
	}
}
