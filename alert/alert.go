/*
Package alert delivers operational alerts raised by the scheduled jobs.

PURPOSE:
  Some failures must reach an operator instead of being retried: the
  canonical case is a period close whose summary committed but whose
  ledger reset failed. Retrying that automatically would archive the
  same week twice, so the job raises an alert and stops.

SINKS:
  LogSink:  Structured log line (always available)
  AMQPSink: Publishes the alert to a durable RabbitMQ exchange for
            whatever pager/ops tooling consumes it
  Multi:    Fans one alert out to several sinks

Alert delivery is best-effort: a sink error is logged by the caller
but never changes the outcome of the job that raised the alert.
*/
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one operational event worth a human's attention.
type Alert struct {
	Severity Severity          `json:"severity"`
	Job      string            `json:"job"`
	Message  string            `json:"message"`
	Occurred time.Time         `json:"occurred"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Sink receives alerts.
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink writes alerts as structured log entries.
type LogSink struct {
	Log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{Log: log}
}

func (s *LogSink) Send(_ context.Context, a Alert) error {
	fields := logrus.Fields{
		"alert":    true,
		"severity": a.Severity,
		"job":      a.Job,
		"occurred": a.Occurred.Format(time.RFC3339),
	}
	for k, v := range a.Fields {
		fields[k] = v
	}
	entry := s.Log.WithFields(fields)
	if a.Severity == SeverityCritical {
		entry.Error(a.Message)
	} else {
		entry.Warn(a.Message)
	}
	return nil
}

// =============================================================================
// AMQP SINK
// =============================================================================

// AMQPSink publishes alerts to a durable direct exchange so external
// ops tooling can consume them.
type AMQPSink struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
}

// NewAMQPSink connects and declares the exchange, queue and binding.
func NewAMQPSink(url, exchange, queue string) (*AMQPSink, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	sink := &AMQPSink{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		queue:    queue,
	}

	if err := sink.setup(); err != nil {
		sink.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return sink, nil
}

func (s *AMQPSink) setup() error {
	err := s.channel.ExchangeDeclare(
		s.exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = s.channel.QueueDeclare(
		s.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = s.channel.QueueBind(
		s.queue,    // queue name
		s.queue,    // routing key (same as queue name for direct exchange)
		s.exchange, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (s *AMQPSink) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = s.channel.PublishWithContext(
		ctx,
		s.exchange, // exchange
		s.queue,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    a.Occurred,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// =============================================================================
// MULTI SINK
// =============================================================================

// Multi fans one alert out to several sinks. Every sink is attempted;
// the first error is returned.
type Multi []Sink

func (m Multi) Send(ctx context.Context, a Alert) error {
	var first error
	for _, sink := range m {
		if err := sink.Send(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
