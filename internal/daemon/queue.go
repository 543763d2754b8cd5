package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
)

// streamName holds all build jobs. Durable so jobs survive daemon restarts.
const streamName = "DOCSFORGE_BUILDS"

// consumerName is shared by all build workers, giving queue-group semantics.
const consumerName = "build-workers"

// Queue is the NATS JetStream build queue.
type Queue struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewQueue connects to NATS and ensures the build stream exists.
func NewQueue(cfg config.DaemonConfig) (*Queue, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("daemon requires a NATS URL")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure build stream: %w", err)
	}

	slog.Info("Build queue ready",
		slog.String("url", cfg.NATSURL), slog.String("subject", cfg.Subject))

	return &Queue{conn: conn, js: js, subject: cfg.Subject}, nil
}

// Enqueue implements Enqueuer.
func (q *Queue) Enqueue(ctx context.Context, job *BuildJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal build job: %w", err)
	}
	if _, err := q.js.Publish(ctx, q.subject, data); err != nil {
		return fmt.Errorf("publish build job: %w", err)
	}
	slog.Debug("Enqueued build job",
		logfields.BuildID(job.ID),
		logfields.Project(job.Project), logfields.Version(job.Version))
	return nil
}

// Handler processes one dequeued job. A returned error requeues the job.
type Handler func(ctx context.Context, job *BuildJob) error

// Consume processes jobs until ctx is canceled. Malformed messages are
// dropped with a log line; handler failures are negatively acknowledged so
// another worker retries them.
func (q *Queue) Consume(ctx context.Context, handle Handler) error {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:   consumerName,
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("ensure consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var job BuildJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			slog.Error("Dropping malformed build job", logfields.Error(err))
			_ = msg.Term()
			return
		}

		if err := handle(ctx, &job); err != nil {
			slog.Warn("Build job failed, requeueing",
				logfields.BuildID(job.ID), logfields.Error(err))
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// Close drains the connection.
func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}
