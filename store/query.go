package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/sdlink/metrics"
)

// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
var ErrNoMetricsFound = errors.New("no metrics records found")

// NewReadDataset opens a dataset for reading with the write path's layout
// and codec.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// NewReadDatasetFS opens a read dataset with filesystem storage.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// Filter narrows a query. Empty fields match everything.
type Filter struct {
	SessionID    string
	Device       string
	TransferType string
}

func (f Filter) matchesSnapshot(snap *lode.Snapshot) bool {
	return snapshotMatches(snap, "session_id", f.SessionID) &&
		snapshotMatches(snap, "device", f.Device) &&
		snapshotMatches(snap, "transfer_type", f.TransferType)
}

func (f Filter) matchesRecord(record map[string]any) bool {
	return (f.SessionID == "" || toString(record["session_id"]) == f.SessionID) &&
		(f.Device == "" || toString(record["device"]) == f.Device) &&
		(f.TransferType == "" || toString(record["transfer_type"]) == f.TransferType)
}

// QueryLatestMetrics finds the most recent metrics record matching filter.
// Returns the raw record map or ErrNoMetricsFound if none exist.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, filter Filter) (map[string]any, error) {
	filter.TransferType = metricsPartition

	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	// Latest first; snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !filter.matchesSnapshot(snap) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are
		// authoritative.
		for j := len(data) - 1; j >= 0; j-- {
			record, ok := data[j].(map[string]any)
			if !ok || record["record_kind"] != RecordKindMetrics {
				continue
			}
			if filter.matchesRecord(record) {
				return record, nil
			}
		}
	}

	return nil, ErrNoMetricsFound
}

// TransferSummary is one stored transfer or failure.
type TransferSummary struct {
	RecordKind   string `json:"record_kind" yaml:"record_kind"`
	TransferType string `json:"transfer_type" yaml:"transfer_type"`
	File         string `json:"file,omitempty" yaml:"file,omitempty"`
	SessionID    string `json:"session_id" yaml:"session_id"`
	Device       string `json:"device" yaml:"device"`
	SizeBytes    int64  `json:"size_bytes" yaml:"size_bytes"`
	Chunks       int64  `json:"chunks" yaml:"chunks"`
	Sidecar      string `json:"sidecar,omitempty" yaml:"sidecar,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	// At is completed_at for transfers and ts for failures.
	At string `json:"at" yaml:"at"`
}

// QueryTransfers lists stored transfers and failures matching filter,
// oldest first. Records repeated across snapshots are returned once.
func QueryTransfers(ctx context.Context, ds lode.Dataset, filter Filter) ([]TransferSummary, error) {
	if filter.TransferType != "" {
		filter.TransferType = partitionType(filter.TransferType)
	}
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	seen := make(map[string]struct{})
	var out []TransferSummary
	for _, snap := range snapshots {
		if !filter.matchesSnapshot(snap) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			kind := toString(record["record_kind"])
			if kind != RecordKindTransfer && kind != RecordKindFailure {
				continue
			}
			if !filter.matchesRecord(record) {
				continue
			}
			if id := toString(record["record_id"]); id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			out = append(out, toSummary(record))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out, nil
}

func toSummary(record map[string]any) TransferSummary {
	s := TransferSummary{
		RecordKind:   toString(record["record_kind"]),
		TransferType: deviceType(toString(record["transfer_type"])),
		File:         toString(record["file"]),
		SessionID:    toString(record["session_id"]),
		Device:       toString(record["device"]),
		SizeBytes:    toInt64(record["size_bytes"]),
		Chunks:       toInt64(record["chunks"]),
		Sidecar:      toString(record["sidecar"]),
		Error:        toString(record["error"]),
	}
	if s.RecordKind == RecordKindFailure {
		s.At = toString(record["ts"])
	} else {
		s.At = toString(record["completed_at"])
	}
	return s
}

// SnapshotFromRecord rebuilds a metrics snapshot from a stored metrics
// record. Unknown or missing counters read as zero.
func SnapshotFromRecord(record map[string]any) metrics.Snapshot {
	snap := metrics.Snapshot{
		EnvelopesReceived:     toInt64(record["envelopes_received_total"]),
		DecodeErrors:          toInt64(record["decode_errors_total"]),
		NoiseLines:            toInt64(record["noise_lines_total"]),
		EnvelopesMalformed:    toInt64(record["envelopes_malformed_total"]),
		DuplicateChunks:       toInt64(record["duplicate_chunks_total"]),
		TransfersSuperseded:   toInt64(record["transfers_superseded_total"]),
		TransfersCompleted:    toInt64(record["transfers_completed_total"]),
		TransfersFailed:       toInt64(record["transfers_failed_total"]),
		TransfersExpired:      toInt64(record["transfers_expired_total"]),
		BytesReassembled:      toInt64(record["bytes_reassembled_total"]),
		CompletedByType:       make(map[string]int64),
		StoreWriteSuccess:     toInt64(record["store_write_success_total"]),
		StoreWriteFailure:     toInt64(record["store_write_failure_total"]),
		AdapterPublishSuccess: toInt64(record["adapter_publish_success_total"]),
		AdapterPublishFailure: toInt64(record["adapter_publish_failure_total"]),
		Encoding:              toString(record["encoding"]),
		StorageBackend:        toString(record["storage_backend"]),
		SessionID:             toString(record["session_id"]),
		Device:                toString(record["device"]),
	}
	if byType, ok := record["completed_by_type"].(map[string]any); ok {
		for k, v := range byType {
			snap.CompletedByType[k] = toInt64(v)
		}
	}
	return snap
}

// snapshotMatches checks if any file path in the snapshot carries the
// exact key=value Hive segment. An empty value matches everything.
func snapshotMatches(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks for an exact key=value path segment, so that
// session_id=s-1 does not match session_id=s-10.
func matchesPartitionValue(p, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(p, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a decoded JSON number to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
