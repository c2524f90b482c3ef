/**
 * @description
 * RabbitMQ producer for subscription lifecycle events. The topic exchange is
 * declared once at startup; Publish marshals the payload to JSON and sends
 * it with persistent delivery so notices survive a broker restart.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/rabbitmq/amqp091-go"
)

// Producer publishes events to a single topic exchange.
type Producer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewProducer connects to the broker and declares the durable topic exchange.
func NewProducer(amqpURL, exchange string) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &Producer{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
	}, nil
}

// Publish sends an event to the exchange with the given routing key.
func (p *Producer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         jsonBody,
		})
}

// Close gracefully closes the channel and connection.
func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
