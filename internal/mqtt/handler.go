package mqtt

import (
	"log"
	"strings"

	"entropy-sts-engine/internal/metrics"
)

// SampleSink accepts raw entropy bytes recovered from broker messages.
// The bitstream assembler implements it.
type SampleSink interface {
	AddBytes(p []byte) int
}

// IngestHandler implements Handler by validating raw entropy payloads and
// forwarding their bytes to the configured SampleSink. Devices publish
// status metadata on ".../meta" subtopics; those are excluded from the
// entropy stream.
type IngestHandler struct {
	Sink SampleSink
}

// OnMessage validates the payload and feeds it to the sink. Empty payloads
// and metadata topics are skipped; bytes the sink cannot buffer are counted
// as dropped.
func (h *IngestHandler) OnMessage(topic string, payload []byte) {
	metrics.RecordMQTTMessage()

	if isMetaTopic(topic) {
		return
	}

	if len(payload) == 0 {
		metrics.RecordSourceDropped("empty_payload", 1)
		log.Printf("mqtt: empty payload on %s", topic)
		return
	}

	if h.Sink == nil {
		log.Printf("mqtt: rx topic=%s bytes=%d (no sink attached)", topic, len(payload))
		return
	}

	accepted := h.Sink.AddBytes(payload)
	metrics.RecordSourceBytes(accepted)
	if accepted < len(payload) {
		metrics.RecordSourceDropped("backlog_full", len(payload)-accepted)
	}
}

// isMetaTopic reports whether the topic carries non-entropy metadata.
func isMetaTopic(topic string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(topic)), "/meta")
}
