package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/streadway/amqp"

	"attendance-backend/models"
)

const routingKeyAccepted = "attendance.accepted"

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher announces accepted check-ins on a topic exchange so other
// services can react to them.
type AMQPPublisher struct {
	// Rabbitmq DSN
	connStr  string
	exchange string
	dial     func(connStr string) (io.Closer, amqpChannel, error)

	mu      sync.Mutex
	closed  bool
	conn    io.Closer
	channel amqpChannel
}

func NewAMQPPublisher(connStr, exchange string) *AMQPPublisher {
	if exchange == "" {
		exchange = "attendance"
	}
	return &AMQPPublisher{
		connStr:  connStr,
		exchange: exchange,
		dial:     dialAMQP,
	}
}

func dialAMQP(connStr string) (io.Closer, amqpChannel, error) {
	conn, err := amqp.Dial(connStr)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = false
	return p.connect()
}

// connect dials and declares the exchange. p.mu must be held.
func (p *AMQPPublisher) connect() error {
	// ensure a DSN is set before attempting to connect.
	if p.connStr == "" {
		return fmt.Errorf("connection string required")
	}

	conn, ch, err := p.dial(p.connStr)
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %q: %w", p.exchange, err)
	}

	p.conn, p.channel = conn, ch
	return nil
}

// disconnect releases the channel and connection. p.mu must be held.
func (p *AMQPPublisher) disconnect() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.disconnect()
}

func (p *AMQPPublisher) Channel() string { return "amqp" }

// Send publishes one record. When the broker has closed the channel the
// publish fails and the publisher reconnects for the next record; a
// publisher whose reconnect failed dials again on the next Send.
func (p *AMQPPublisher) Send(ctx context.Context, rec models.AttendanceRecord) error {
	body, err := acceptedPayload(rec)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("amqp: publisher not open")
	}
	if p.channel == nil {
		if err := p.connect(); err != nil {
			return fmt.Errorf("amqp: publisher not open: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = p.channel.Publish(
		p.exchange,
		routingKeyAccepted,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    rec.ID,
			Timestamp:    rec.CheckInAt,
			Body:         body,
		})
	if errors.Is(err, amqp.ErrClosed) {
		p.disconnect()
		if rerr := p.connect(); rerr != nil {
			return fmt.Errorf("amqp: publish: %w; reconnect: %v", err, rerr)
		}
	}
	if err != nil {
		return fmt.Errorf("amqp: publish: %w", err)
	}
	return nil
}

type acceptedMessage struct {
	Event  string                  `json:"event"`
	Record models.AttendanceRecord `json:"record"`
}

func acceptedPayload(rec models.AttendanceRecord) ([]byte, error) {
	body, err := json.Marshal(acceptedMessage{Event: routingKeyAccepted, Record: rec})
	if err != nil {
		return nil, fmt.Errorf("amqp: marshal: %w", err)
	}
	return body, nil
}
