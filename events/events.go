package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	BookingCancelled     = "booking.cancelled"

	defaultQueue   = "booking.events"
	publishTimeout = 5 * time.Second
)

// Event is the JSON body published for every booking lifecycle change.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	BookingID    uuid.UUID `json:"booking_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	UserID       uuid.UUID `json:"user_id"`
	Status       string    `json:"status"`
	ReservedAt   time.Time `json:"reserved_at"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// AMQPPublisher writes events to a durable RabbitMQ queue through the default
// exchange.
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	if queue == "" {
		queue = defaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID.String(),
			Type:         e.Type,
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }

// FromEnv connects to AMQP_URL when it is set and falls back to NopPublisher
// otherwise.
func FromEnv() (Publisher, error) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		log.Println("AMQP_URL not set, booking events will not be published")
		return NopPublisher{}, nil
	}

	p, err := NewAMQPPublisher(url, os.Getenv("BOOKING_EVENTS_QUEUE"))
	if err != nil {
		return nil, err
	}
	log.Printf("Publishing booking events to queue %s", p.queue)
	return p, nil
}

// Emit publishes e on a background goroutine and logs failures. Request
// handlers use it so a broker outage never fails a booking.
func Emit(p Publisher, e Event) {
	if p == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	go func() {
		if err := p.Publish(context.Background(), e); err != nil {
			log.Printf("Failed to publish %s for booking %s: %v", e.Type, e.BookingID, err)
		}
	}()
}
