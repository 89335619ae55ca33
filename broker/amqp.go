package broker

import (
	"context"
	"encoding/json"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
)

var _ Producer = &AMQPBroker{}
var _ Consumer = &AMQPBroker{}

const (
	notificationExchange string = "user_notification"
	notificationQueue           = "user_notification_outbox"
	notificationKey             = "notify"
)

// AMQPBroker carries notifications via RabbitMQ
type AMQPBroker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewAMQPBroker returns a notification broker over RabbitMQ
func NewAMQPBroker(amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := broker.setupNotificationExchange(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare exchange for notifications")
	}

	return broker, nil
}

func (a *AMQPBroker) setupNotificationExchange() error {
	return a.channel.ExchangeDeclare(
		notificationExchange, // name
		"direct",             // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

// SendNotification publishes a notification to the outbox exchange
func (a *AMQPBroker) SendNotification(n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode notification into bytes")
	}
	if err := a.channel.Publish(
		notificationExchange,
		notificationKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return extErrors.Wrap(err, "Cannot publish notification")
	}
	return nil
}

func (a *AMQPBroker) setupQueue(qName string) error {
	_, err := a.channel.QueueDeclare(
		qName,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

// ReceiveNotifications binds the outbox queue and delivers notifications
// until ctx is cancelled. Malformed messages are rejected without requeue.
func (a *AMQPBroker) ReceiveNotifications(ctx context.Context) (<-chan *Notification, error) {
	if err := a.setupQueue(notificationQueue); err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup queue")
	}
	if err := a.channel.QueueBind(
		notificationQueue,
		notificationKey,
		notificationExchange,
		false,
		nil,
	); err != nil {
		return nil, extErrors.Wrap(err, "Cannot bind queue")
	}
	msgChan, err := a.channel.Consume(
		notificationQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup consumer")
	}
	rChan := make(chan *Notification)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-msgChan:
				var n Notification
				if err := json.Unmarshal(d.Body, &n); err != nil {
					d.Nack(false, false)
					continue
				}
				rChan <- &n
				d.Ack(false)
			}
		}
	}()
	return rChan, nil
}
