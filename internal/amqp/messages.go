package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExportJobMessage asks the worker to email a user their report. Only the
// user id travels; the worker loads everything else from the database.
type ExportJobMessage struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportJobMessage(userID string) *ExportJobMessage {
	return &ExportJobMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *ExportJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportJobMessageFromJSON decodes a job, rejecting payloads without a user.
func ExportJobMessageFromJSON(data []byte) (*ExportJobMessage, error) {
	var msg ExportJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("export job without userId")
	}
	return &msg, nil
}
