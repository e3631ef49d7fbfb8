package fanout

import (
	"fmt"
	"time"

	"github.com/casualjim/parley/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var observationJSON = []byte(`{"type":"observation"}`)

// Envelope is the wire form of one observation published over NATS.
type Envelope[T any] struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Payload   T               `json:"payload"`
}

// NewEnvelope wraps a value with a fresh id and the current time.
func NewEnvelope[T any](topic string, payload T) Envelope[T] {
	return Envelope[T]{
		ID:        uuidx.NewString(),
		Topic:     topic,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
		Payload:   payload,
	}
}

// MarshalJSON implements custom JSON marshaling for Envelope[T].
func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	result := observationJSON

	var err error
	result, err = sjson.SetBytes(result, "id", e.ID)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "topic", e.Topic)
	if err != nil {
		return nil, err
	}

	if !time.Time(e.Timestamp).IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return sjson.SetRawBytes(result, "payload", payload)
}

// UnmarshalJSON implements custom JSON unmarshaling for Envelope[T].
func (e *Envelope[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "observation" {
		return fmt.Errorf("missing or invalid type, expected 'observation'")
	}

	id := gjson.GetBytes(data, "id")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'id'")
	}
	e.ID = id.String()
	e.Topic = gjson.GetBytes(data, "topic").String()

	if ts := gjson.GetBytes(data, "timestamp"); ts.Exists() {
		parsed, err := strfmt.ParseDateTime(ts.String())
		if err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
		e.Timestamp = parsed
	}

	payload := gjson.GetBytes(data, "payload")
	if !payload.Exists() {
		return fmt.Errorf("missing required field 'payload'")
	}
	if err := json.Unmarshal([]byte(payload.Raw), &e.Payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
