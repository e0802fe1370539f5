package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned wire envelope for every notification the
// question market emits. Consumers key their ordering on PartitionKey (the
// question id), so the schema must stay backward compatible; add fields,
// never repurpose them.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}
