package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const SchemaVersion = "1"

// Header keys carried by every message.
const (
	HeaderCountry       = "countryCode"
	HeaderSchemaVersion = "schema-version"
	HeaderEventType     = "event-type"
)

const (
	EventAppointmentRequested = "AppointmentRequested"
	EventAppointmentCompleted = "AppointmentCompleted"
)

// RequestMessage asks a country worker to confirm an appointment.
type RequestMessage struct {
	AppointmentID string            `json:"appointmentId"`
	InsuredID     string            `json:"insuredId"`
	ScheduleID    int64             `json:"scheduleId"`
	CountryCode   model.CountryCode `json:"countryCode"`
	Timestamp     time.Time         `json:"timestamp"`
}

// CompletionMessage reports that a country store confirmed the appointment.
type CompletionMessage struct {
	AppointmentID string            `json:"appointmentId"`
	InsuredID     string            `json:"insuredId"`
	ScheduleID    int64             `json:"scheduleId"`
	CountryCode   model.CountryCode `json:"countryCode"`
	Status        model.Status      `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
}

func NewRequestMessage(a *model.Appointment) RequestMessage {
	return RequestMessage{
		AppointmentID: a.ID,
		InsuredID:     a.InsuredID,
		ScheduleID:    a.ScheduleID,
		CountryCode:   a.CountryCode,
		Timestamp:     a.CreatedAt,
	}
}

// Completion derives the completion event emitted after the country write.
func (m RequestMessage) Completion(at time.Time) CompletionMessage {
	return CompletionMessage{
		AppointmentID: m.AppointmentID,
		InsuredID:     m.InsuredID,
		ScheduleID:    m.ScheduleID,
		CountryCode:   m.CountryCode,
		Status:        model.StatusCompleted,
		Timestamp:     at.UTC(),
	}
}

// EncodeRequest keys by appointment id so a country's traffic spreads over every
// partition; the countryCode header carries the routing.
func EncodeRequest(m RequestMessage) (kafka.Message, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(m.AppointmentID),
		Value: b,
		Time:  m.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderCountry, Value: []byte(m.CountryCode)},
			{Key: HeaderSchemaVersion, Value: []byte(SchemaVersion)},
			{Key: HeaderEventType, Value: []byte(EventAppointmentRequested)},
		},
	}, nil
}

// EncodeCompletion keys by appointment id.
func EncodeCompletion(m CompletionMessage) (kafka.Message, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(m.AppointmentID),
		Value: b,
		Time:  m.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderCountry, Value: []byte(m.CountryCode)},
			{Key: HeaderSchemaVersion, Value: []byte(SchemaVersion)},
			{Key: HeaderEventType, Value: []byte(EventAppointmentCompleted)},
		},
	}, nil
}

func DecodeRequest(msg kafka.Message) (RequestMessage, error) {
	var m RequestMessage
	if err := decode(msg, &m); err != nil {
		return RequestMessage{}, err
	}
	return m, nil
}

func DecodeCompletion(msg kafka.Message) (CompletionMessage, error) {
	var m CompletionMessage
	if err := decode(msg, &m); err != nil {
		return CompletionMessage{}, err
	}
	return m, nil
}

func decode(msg kafka.Message, v interface{}) error {
	if got := Header(msg, HeaderSchemaVersion); got != SchemaVersion {
		return fmt.Errorf("unsupported schema version %q", got)
	}
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", Header(msg, HeaderEventType), err)
	}
	return nil
}

// Header returns the first value of key, or "".
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// CountryOf reads the routing attribute, falling back to the body for producers that omit it.
func CountryOf(msg kafka.Message) model.CountryCode {
	if c := Header(msg, HeaderCountry); c != "" {
		return model.CountryCode(c)
	}
	var body struct {
		CountryCode model.CountryCode `json:"countryCode"`
	}
	_ = json.Unmarshal(msg.Value, &body)
	return body.CountryCode
}
