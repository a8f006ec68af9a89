package models

// RecordEventsTopic carries record lifecycle events.
const RecordEventsTopic = "record_events"

const (
	EventRecordCreated = "record_created"
	EventRecordUpdated = "record_updated"
	EventRecordDeleted = "record_deleted"
)

// RecordEvent is published after a record mutation commits.
type RecordEvent struct {
	Event string        `json:"event"`
	Data  RecordSummary `json:"data"`
}

// RecordsIndex is the Elasticsearch index holding record summaries for
// name suggestions.
const RecordsIndex = "records"
