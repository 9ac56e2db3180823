package audit

import (
	"context"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const eventQueueName = "security.events"

// publishEvent pushes one serialized event to the security.events queue.
// The function never panics; any error is logged and dropped, keeping the
// audit stream best-effort end to end. Messages are marked persistent so
// they survive broker restarts.
func publishEvent(url string, body []byte) {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Printf("audit: dial broker failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("audit: channel open failed: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare so publisher and consumer can start in any order.
	if _, err := ch.QueueDeclare(
		eventQueueName, // name
		true,           // durable
		false,          // autoDelete
		false,          // exclusive
		false,          // noWait
		nil,            // args
	); err != nil {
		log.Printf("audit: queue declare failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", eventQueueName, false, false, pub); err != nil {
		log.Printf("audit: publish failed: %v", err)
	}
}
