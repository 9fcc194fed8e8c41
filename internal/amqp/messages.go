package amqp

import (
	"encoding/json"
	"time"
)

// JobSyncMessage nudges the worker to export one job. It carries only the
// ID and operation; the worker fetches the full job from the database.
type JobSyncMessage struct {
	JobID     string    `json:"job_id"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

func NewJobSyncMessage(jobID, operation string) *JobSyncMessage {
	return &JobSyncMessage{
		JobID:     jobID,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

func (m *JobSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func JobSyncMessageFromJSON(data []byte) (*JobSyncMessage, error) {
	var msg JobSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
