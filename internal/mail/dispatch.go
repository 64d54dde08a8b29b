package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxAttempts = 5
	baseDelay   = 500 * time.Millisecond
)

// sender is what dispatchers deliver through.
type sender interface {
	Send(msg Message) error
}

// deliver sends msg, retrying with jittered exponential backoff.
func deliver(ctx context.Context, s sender, msg Message, sleep func(time.Duration)) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = s.Send(msg); err == nil {
			slog.Info("mail sent", "template", msg.Template, "to", msg.To)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := time.Duration(rand.Int64N(int64(baseDelay) << attempt))
		slog.Info("delaying mail", "template", msg.Template, "attempt", attempt, "delay", delay, "error", err)
		sleep(delay)
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, err)
}

// AsyncDispatcher delivers each message from its own goroutine.
type AsyncDispatcher struct {
	sender sender
	sleep  func(time.Duration)
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAsyncDispatcher creates a dispatcher that sends in the background.
func NewAsyncDispatcher(s *Sender) *AsyncDispatcher {
	return newAsyncDispatcher(s)
}

func newAsyncDispatcher(s sender) *AsyncDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncDispatcher{sender: s, sleep: time.Sleep, ctx: ctx, cancel: cancel}
}

// Dispatch starts delivery and returns immediately. The request context is
// not used for delivery so the send outlives the request.
func (d *AsyncDispatcher) Dispatch(_ context.Context, msg Message) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := deliver(d.ctx, d.sender, msg, d.sleep); err != nil {
			slog.Error("mail delivery failed", "template", msg.Template, "to", msg.To, "error", err)
		}
	}()
	return nil
}

// Close waits for in-flight deliveries, abandoning retries after ctx ends.
func (d *AsyncDispatcher) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
}

// RabbitMQ topology for mail jobs.
const (
	Exchange   = "mail_exchange"
	Queue      = "mail_send_queue"
	BindingKey = "mail.send"
)

// Broker is a RabbitMQ connection with one channel.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewBroker dials RabbitMQ and declares the mail exchange and queue.
func NewBroker(uri string) (*Broker, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("could not connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}

	b := &Broker{conn: conn, ch: ch}
	if err := b.setup(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) setup() error {
	if err := b.ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := b.ch.QueueDeclare(Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.ch.QueueBind(Queue, BindingKey, Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends a raw job body to the mail exchange.
func (b *Broker) Publish(ctx context.Context, body []byte) error {
	err := b.ch.PublishWithContext(ctx, Exchange, BindingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}
	return nil
}

// Consume starts receiving mail jobs.
func (b *Broker) Consume() (<-chan amqp.Delivery, error) {
	msgs, err := b.ch.Consume(Queue, "folio-mailer", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume messages: %w", err)
	}
	return msgs, nil
}

// Close closes the channel and connection.
func (b *Broker) Close() error {
	if err := b.ch.Close(); err != nil {
		return err
	}
	return b.conn.Close()
}

// Publisher is the producing side of the broker.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// QueueDispatcher hands messages to RabbitMQ; a Worker delivers them.
type QueueDispatcher struct {
	pub Publisher
}

// NewQueueDispatcher creates a dispatcher that enqueues messages.
func NewQueueDispatcher(pub Publisher) *QueueDispatcher {
	return &QueueDispatcher{pub: pub}
}

// Dispatch enqueues msg.
func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail job: %w", err)
	}
	return d.pub.Publish(ctx, body)
}

// Worker consumes mail jobs and delivers them.
type Worker struct {
	sender sender
	sleep  func(time.Duration)
}

// NewWorker creates a worker that sends through s.
func NewWorker(s *Sender) *Worker {
	return &Worker{sender: s, sleep: time.Sleep}
}

// Run processes deliveries until the channel closes or ctx is done. Every
// delivery is acked, including ones that fail permanently, so a bad job
// cannot block the queue.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("mail worker stopping")
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, d.Body)
			if err := d.Ack(false); err != nil {
				slog.Error("mail job ack failed", "error", err)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, body []byte) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		slog.Error("could not decode mail job", "error", err)
		return
	}
	if err := deliver(ctx, w.sender, msg, w.sleep); err != nil {
		slog.Error("mail delivery failed", "template", msg.Template, "to", msg.To, "error", err)
	}
}
