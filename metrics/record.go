// Package metrics defines the metric record wire shape and the in-memory
// Prometheus aggregator that accumulates records ingested by the daemon.
package metrics

import "time"

// OperationType enumerates the I/O operations a workload process may record.
type OperationType string

const (
	OperationUpload   OperationType = "upload"
	OperationDownload OperationType = "download"
	OperationDelete   OperationType = "delete"
	OperationList     OperationType = "list"
	OperationHead     OperationType = "head"
	OperationRead     OperationType = "read"
	OperationWrite    OperationType = "write"
)

// WorkloadType enumerates the workload backends a driver may target.
type WorkloadType string

const (
	WorkloadS3  WorkloadType = "s3"
	WorkloadRBD WorkloadType = "rbd"
)

// Record is an immutable value describing one completed operation, emitted
// by a workload process and streamed to the metrics daemon over IPC.
//
// RetryCount and Metadata are additive fields carried over from the original
// implementation's OperationMetric; the aggregator does not label on them.
type Record struct {
	OperationID     string        `json:"operation_id"`
	TimestampStart  time.Time     `json:"timestamp_start"`
	TimestampEnd    time.Time     `json:"timestamp_end"`
	OperationType   OperationType `json:"operation_type"`
	WorkloadType    WorkloadType  `json:"workload_type"`
	ObjectKey       string        `json:"object_key"`
	ObjectSizeBytes int64         `json:"object_size_bytes"`
	Success         bool          `json:"success"`
	ErrorCode       string        `json:"error_code,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Driver          string        `json:"driver,omitempty"`
	UserID          string        `json:"user_id,omitempty"`
	RetryCount      int           `json:"retry_count,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DurationMS returns (TimestampEnd - TimestampStart) in milliseconds.
// Never negative: a record whose end precedes its start reports 0.
func (r Record) DurationMS() float64 {
	d := r.TimestampEnd.Sub(r.TimestampStart).Seconds() * 1000
	if d < 0 {
		return 0
	}
	return d
}

// ThroughputMBPS derives throughput from size and duration. Zero duration
// (or negative, clamped by DurationMS) yields zero throughput rather than
// dividing by zero.
func (r Record) ThroughputMBPS() float64 {
	durationMS := r.DurationMS()
	if durationMS <= 0 {
		return 0
	}
	mib := float64(r.ObjectSizeBytes) / (1 << 20)
	seconds := durationMS / 1000
	return mib / seconds
}

// successLabel renders the success field as the aggregator's string label.
func successLabel(success bool) string {
	if success {
		return "true"
	}
	return "false"
}
