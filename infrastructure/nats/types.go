package nats

// Stream and Consumer names
const (
	StreamName   = "PROCESSING_JOBS"
	ConsumerName = "MEDIA_WORKER"
	SubjectJobs  = "jobs.process"

	// Pub/Sub subject for progress updates: progress.{video_id}
	SubjectProgress = "progress"
)

// ═══════════════════════════════════════════════════════════════════════════════
// JetStream Status - for the queue status endpoint
// ═══════════════════════════════════════════════════════════════════════════════
type JetStreamStatus struct {
	Stream   StreamInfo   `json:"stream"`
	Consumer ConsumerInfo `json:"consumer"`
}

type StreamInfo struct {
	Name     string `json:"name"`
	Messages uint64 `json:"messages"`
	Bytes    uint64 `json:"bytes"`
	FirstSeq uint64 `json:"first_seq"`
	LastSeq  uint64 `json:"last_seq"`
}

type ConsumerInfo struct {
	Name          string `json:"name"`
	NumPending    uint64 `json:"num_pending"`
	NumAckPending int    `json:"num_ack_pending"`
	Redelivered   uint64 `json:"redelivered"`
}
