package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Attendance domain event types.
const (
	TypeCheckedIn    = "attendance.checked_in"
	TypeCheckedOut   = "attendance.checked_out"
	TypePartialDay   = "attendance.partial_day"
	TypeBreakStarted = "attendance.break_started"
	TypeBreakEnded   = "attendance.break_ended"
	TypeAutoClosed   = "attendance.auto_closed"
	TypeDailyLog     = "attendance.daily_log"
)

// Event is the envelope written to the attendance topic.
type Event struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	CompanyID    string      `json:"company_id"`
	UserID       string      `json:"user_id"`
	AttendanceID string      `json:"attendance_id,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
	Payload      interface{} `json:"payload,omitempty"`
}

func New(eventType, companyID, userID, attendanceID string, payload interface{}) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		CompanyID:    companyID,
		UserID:       userID,
		AttendanceID: attendanceID,
		OccurredAt:   time.Now().UTC(),
		Payload:      payload,
	}
}

// Publisher delivers domain events to downstream consumers (payroll, daily logs).
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by user, so a
// user's events stay ordered within one partition.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Compression:            kafka.Snappy,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.CompanyID + ":" + ev.UserID),
			Value: value,
			Time:  ev.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
				{Key: "event_id", Value: []byte(ev.ID)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write to topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

func (NopPublisher) Close() error { return nil }
