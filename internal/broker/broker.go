// Package broker wraps the RabbitMQ connection used to fan domain events out
// to subscribers such as a NOTIFICATION-type bot pool. The orchestrator
// itself never consumes these events; process_pending_tasks and
// push_relations are their only publishers.
package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event names published by the orchestrator.
const (
	RelationPurchasedEvent  = "relation.purchased"
	RelationRolledBackEvent = "relation.rolled_back"
	EdgeBotBlockedEvent     = "edgebot.blocked"
	InviteSentEvent         = "invite.sent"
)

// MaxRetryCount bounds in-place republish attempts before a message is
// routed to its queue-specific dead-letter queue.
const MaxRetryCount = 3

// DLX is the dead-letter exchange every queue routes failed messages to.
const DLX = "dlx"

var exchanges = []string{
	RelationPurchasedEvent,
	RelationRolledBackEvent,
	EdgeBotBlockedEvent,
	InviteSentEvent,
}

// Connect dials RabbitMQ, opens a channel, and declares the DLX/DLQ
// scaffolding plus every domain-event exchange this service publishes to.
func Connect(user, pass, host, port string) (*amqp.Channel, func() error, error) {
	address := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(address)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareDeadLetterInfra(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare dead-letter infra: %w", err)
	}

	if err := declareExchanges(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchanges: %w", err)
	}

	closeFn := func() error {
		if err := ch.Close(); err != nil {
			return err
		}
		return conn.Close()
	}

	return ch, closeFn, nil
}

// Publish publishes a domain event onto its exchange, injecting the trace
// context from ctx into the message headers.
func Publish(ctx context.Context, ch *amqp.Channel, event string, body []byte) error {
	headers := InjectTraceContext(ctx)

	return ch.PublishWithContext(ctx, event, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		Headers:      headers,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// HandleRetry increments the retry count on a failed delivery and either
// republishes it after a linear backoff (retry count in seconds) or, once the
// count reaches MaxRetryCount, Nacks it
// without requeue so the queue's x-dead-letter-exchange routes it to its DLQ.
func HandleRetry(ch *amqp.Channel, d *amqp.Delivery) error {
	if d.Headers == nil {
		d.Headers = amqp.Table{}
	}

	retryCount, _ := d.Headers["x-retry-count"].(int64)
	retryCount++
	d.Headers["x-retry-count"] = retryCount

	if retryCount >= MaxRetryCount {
		return d.Nack(false, false)
	}

	time.Sleep(time.Second * time.Duration(retryCount))

	return ch.PublishWithContext(
		context.Background(),
		d.Exchange,
		d.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Headers:      d.Headers,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

func declareDeadLetterInfra(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLX, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx exchange: %w", err)
	}

	for _, event := range exchanges {
		dlq := event + ".dlq"

		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dlq %s: %w", dlq, err)
		}

		if err := ch.QueueBind(dlq, event, DLX, false, nil); err != nil {
			return fmt.Errorf("bind dlq %s: %w", dlq, err)
		}
	}

	return nil
}

func declareExchanges(ch *amqp.Channel) error {
	for _, event := range exchanges {
		if err := ch.ExchangeDeclare(event, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s exchange: %w", event, err)
		}
	}
	return nil
}
