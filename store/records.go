package store

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/types"
)

// RecordKind discriminator values.
const (
	RecordKindTransfer = "transfer"
	RecordKindFailure  = "transfer_failure"
	RecordKindMetrics  = "metrics"
)

// metricsPartition is the transfer_type partition for metrics records.
// transfer_type values starting with '_' are reserved for records sdlink
// writes about itself; see partitionType.
const metricsPartition = "_metrics"

// partitionType maps a device transfer type to its transfer_type value.
// A device type starting with '_' gains one more, so no device can write
// into a reserved partition.
func partitionType(kind string) string {
	if strings.HasPrefix(kind, "_") {
		return "_" + kind
	}
	return kind
}

// deviceType inverts partitionType for transfer and failure records.
func deviceType(partition string) string {
	if strings.HasPrefix(partition, "__") {
		return partition[1:]
	}
	return partition
}

// tsFormat is used for every timestamp written to the dataset.
const tsFormat = time.RFC3339Nano

// baseRecord returns the fields every record carries: a unique record_id
// plus the partition keys.
func baseRecord(kind, transferType string, cfg Config) map[string]any {
	return map[string]any{
		"record_id":     uuid.NewString(),
		"record_kind":   kind,
		"transfer_type": transferType, // partition key
		"device":        cfg.Device,
		"day":           cfg.Day,
		"session_id":    cfg.SessionID,
	}
}

// toTransferRecordMap converts a transfer for storage. Text payloads are
// stored inline; binary payloads are referenced by their sidecar path.
// Lode HiveLayout requires records as map[string]any.
func toTransferRecordMap(t *types.Transfer, sidecar string, cfg Config) map[string]any {
	m := baseRecord(RecordKindTransfer, partitionType(t.Key.Type), cfg)
	m["file"] = t.Key.File
	m["chunks"] = t.Chunks
	m["duplicates"] = t.Duplicates
	m["size_bytes"] = int64(len(t.Payload))
	m["binary"] = t.Binary
	m["started_at"] = t.StartedAt.UTC().Format(tsFormat)
	m["completed_at"] = t.CompletedAt.UTC().Format(tsFormat)
	if t.Binary {
		m["sidecar"] = sidecar
	} else {
		m["payload"] = string(t.Payload)
	}
	return m
}

// toFailureRecordMap converts a device-reported failure for storage.
func toFailureRecordMap(f *types.TransferFailure, cfg Config) map[string]any {
	m := baseRecord(RecordKindFailure, partitionType(f.Key.Type), cfg)
	m["file"] = f.Key.File
	m["error"] = f.Message
	m["ts"] = f.At.UTC().Format(tsFormat)
	return m
}

// toMetricsRecordMap converts a session metrics snapshot for storage.
func toMetricsRecordMap(snap metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	byType := make(map[string]any, len(snap.CompletedByType))
	for k, v := range snap.CompletedByType {
		byType[k] = v
	}

	m := baseRecord(RecordKindMetrics, metricsPartition, cfg)
	m["ts"] = completedAt.UTC().Format(tsFormat)
	m["envelopes_received_total"] = snap.EnvelopesReceived
	m["decode_errors_total"] = snap.DecodeErrors
	m["noise_lines_total"] = snap.NoiseLines
	m["envelopes_malformed_total"] = snap.EnvelopesMalformed
	m["duplicate_chunks_total"] = snap.DuplicateChunks
	m["transfers_superseded_total"] = snap.TransfersSuperseded
	m["transfers_completed_total"] = snap.TransfersCompleted
	m["transfers_failed_total"] = snap.TransfersFailed
	m["transfers_expired_total"] = snap.TransfersExpired
	m["bytes_reassembled_total"] = snap.BytesReassembled
	m["completed_by_type"] = byType
	m["store_write_success_total"] = snap.StoreWriteSuccess
	m["store_write_failure_total"] = snap.StoreWriteFailure
	m["adapter_publish_success_total"] = snap.AdapterPublishSuccess
	m["adapter_publish_failure_total"] = snap.AdapterPublishFailure
	m["encoding"] = snap.Encoding
	m["storage_backend"] = snap.StorageBackend
	return m
}
