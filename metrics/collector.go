// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single receive session. It is a
// leaf package with no internal dependencies. Reassembly counters are absorbed
// from the reassembler's cumulative stats at session end rather than recorded
// live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stream
	EnvelopesReceived int64 `json:"envelopes_received" yaml:"envelopes_received"`
	DecodeErrors      int64 `json:"decode_errors" yaml:"decode_errors"`
	NoiseLines        int64 `json:"noise_lines" yaml:"noise_lines"`

	// Reassembly (absorbed from reassembly stats at session end)
	EnvelopesMalformed  int64 `json:"envelopes_malformed" yaml:"envelopes_malformed"`
	DuplicateChunks     int64 `json:"duplicate_chunks" yaml:"duplicate_chunks"`
	TransfersSuperseded int64 `json:"transfers_superseded" yaml:"transfers_superseded"`

	// Transfers
	TransfersCompleted int64            `json:"transfers_completed" yaml:"transfers_completed"`
	TransfersFailed    int64            `json:"transfers_failed" yaml:"transfers_failed"`
	TransfersExpired   int64            `json:"transfers_expired" yaml:"transfers_expired"`
	BytesReassembled   int64            `json:"bytes_reassembled" yaml:"bytes_reassembled"`
	CompletedByType    map[string]int64 `json:"completed_by_type" yaml:"completed_by_type"`

	// Storage
	StoreWriteSuccess int64 `json:"store_write_success" yaml:"store_write_success"`
	StoreWriteFailure int64 `json:"store_write_failure" yaml:"store_write_failure"`

	// Adapter
	AdapterPublishSuccess int64 `json:"adapter_publish_success" yaml:"adapter_publish_success"`
	AdapterPublishFailure int64 `json:"adapter_publish_failure" yaml:"adapter_publish_failure"`

	// Dimensions (informational, set at construction)
	Encoding       string `json:"encoding" yaml:"encoding"`
	StorageBackend string `json:"storage_backend" yaml:"storage_backend"`
	SessionID      string `json:"session_id" yaml:"session_id"`
	Device         string `json:"device" yaml:"device"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	envelopesReceived int64
	decodeErrors      int64
	noiseLines        int64

	envelopesMalformed  int64
	duplicateChunks     int64
	transfersSuperseded int64

	transfersCompleted int64
	transfersFailed    int64
	transfersExpired   int64
	bytesReassembled   int64
	completedByType    map[string]int64

	storeWriteSuccess int64
	storeWriteFailure int64

	adapterPublishSuccess int64
	adapterPublishFailure int64

	encoding       string
	storageBackend string
	sessionID      string
	device         string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend is empty when nothing is persisted.
func NewCollector(encoding, storageBackend, sessionID, device string) *Collector {
	return &Collector{
		completedByType: make(map[string]int64),
		encoding:        encoding,
		storageBackend:  storageBackend,
		sessionID:       sessionID,
		device:          device,
	}
}

// add increments a counter under the lock.
func (c *Collector) add(counter *int64, n int64) {
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Stream ---

// IncEnvelopeReceived records a decoded envelope.
func (c *Collector) IncEnvelopeReceived() {
	if c == nil {
		return
	}
	c.add(&c.envelopesReceived, 1)
}

// IncDecodeError records an envelope that could not be decoded.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, 1)
}

// IncNoiseLine records a skipped console line.
func (c *Collector) IncNoiseLine() {
	if c == nil {
		return
	}
	c.add(&c.noiseLines, 1)
}

// --- Transfers ---

// IncTransferCompleted records a completed transfer of the given kind
// carrying n payload bytes.
func (c *Collector) IncTransferCompleted(kind string, n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transfersCompleted++
	c.bytesReassembled += int64(n)
	c.completedByType[kind]++
	c.mu.Unlock()
}

// IncTransferFailed records an error envelope from the device.
func (c *Collector) IncTransferFailed() {
	if c == nil {
		return
	}
	c.add(&c.transfersFailed, 1)
}

// IncTransferExpired records a transfer dropped for inactivity.
func (c *Collector) IncTransferExpired() {
	if c == nil {
		return
	}
	c.add(&c.transfersExpired, 1)
}

// --- Storage ---
// Store counters are per-call, not per-record.

// IncStoreWriteSuccess records a successful store write.
func (c *Collector) IncStoreWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.storeWriteSuccess, 1)
}

// IncStoreWriteFailure records a failed store write.
func (c *Collector) IncStoreWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.storeWriteFailure, 1)
}

// --- Adapter ---

// IncAdapterPublishSuccess records a delivered notification.
func (c *Collector) IncAdapterPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.adapterPublishSuccess, 1)
}

// IncAdapterPublishFailure records a notification that exhausted its retries.
func (c *Collector) IncAdapterPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.adapterPublishFailure, 1)
}

// --- Reassembly ---

// AddReassemblyStats adds reassembly counter deltas. The engine calls it
// after every chunk so the counters are current mid-session.
func (c *Collector) AddReassemblyStats(malformed, duplicates, superseded int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.envelopesMalformed += malformed
	c.duplicateChunks += duplicates
	c.transfersSuperseded += superseded
	c.mu.Unlock()
}

// IncTransferSuperseded records an in-flight transfer dropped because a
// chunk of another transfer took its place.
func (c *Collector) IncTransferSuperseded() {
	if c == nil {
		return
	}
	c.add(&c.transfersSuperseded, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.completedByType))
	for k, v := range c.completedByType {
		byType[k] = v
	}

	return Snapshot{
		EnvelopesReceived: c.envelopesReceived,
		DecodeErrors:      c.decodeErrors,
		NoiseLines:        c.noiseLines,

		EnvelopesMalformed:  c.envelopesMalformed,
		DuplicateChunks:     c.duplicateChunks,
		TransfersSuperseded: c.transfersSuperseded,

		TransfersCompleted: c.transfersCompleted,
		TransfersFailed:    c.transfersFailed,
		TransfersExpired:   c.transfersExpired,
		BytesReassembled:   c.bytesReassembled,
		CompletedByType:    byType,

		StoreWriteSuccess: c.storeWriteSuccess,
		StoreWriteFailure: c.storeWriteFailure,

		AdapterPublishSuccess: c.adapterPublishSuccess,
		AdapterPublishFailure: c.adapterPublishFailure,

		Encoding:       c.encoding,
		StorageBackend: c.storageBackend,
		SessionID:      c.sessionID,
		Device:         c.device,
	}
}
