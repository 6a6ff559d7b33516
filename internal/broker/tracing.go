package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// InjectTraceContext packs the current span context into AMQP headers so a
// consumer can continue the trace (RabbitMQ has no automatic propagation).
func InjectTraceContext(ctx context.Context) amqp.Table {
	headers := make(amqp.Table)
	carrier := &headersCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return headers
}

// ExtractTraceContext recovers a trace context previously packed by
// InjectTraceContext.
func ExtractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	carrier := &headersCarrier{headers: headers}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// headersCarrier adapts amqp.Table to propagation.TextMapCarrier.
type headersCarrier struct {
	headers amqp.Table
}

func (c *headersCarrier) Get(key string) string {
	if val, ok := c.headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (c *headersCarrier) Set(key, value string) {
	c.headers[key] = value
}

func (c *headersCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	return keys
}
