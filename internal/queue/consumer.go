package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/venue-directory/internal/logging"
)

// StartRunConsumer consumes RunCompletedQueue and appends one line per run
// to logPath. It reconnects with backoff until ctx is cancelled.
func StartRunConsumer(ctx context.Context, url, logPath string) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logging.Warn().Err(err).Dur("retry_in", backoff).Msg("run consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn().Err(err).Msg("run consumer: loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		logging.Warn().Err(err).Msg("run consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(RunCompletedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, RunCompletedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleMessage(d.Body, logPath); err != nil {
			logging.Error().Err(err).Msg("run consumer: handle message failed")
			// no requeue: a bad payload would loop forever
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one RunCompletedEvent and appends it to logPath.
func HandleMessage(body []byte, logPath string) error {
	var ev RunCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.RunID == "" {
		return errors.New("run_id missing")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human-readable log line.
func FormatLine(ev RunCompletedEvent) string {
	result := "ok"
	if !ev.Success {
		result = "FAILED"
	}
	sources := make([]string, len(ev.Sources))
	for i, s := range ev.Sources {
		sources[i] = fmt.Sprintf("%s=%s(+%d ~%d /%d)", s.Source, s.Status, s.Added, s.Updated, s.Found)
	}
	return fmt.Sprintf("[%s] Sync %s | run_id=%s | events=+%d ~%d /%d | movies=+%d ~%d /%d | sources=[%s] | errors=%d\n",
		ev.FinishedAt, result, ev.RunID,
		ev.EventsAdded, ev.EventsUpdated, ev.EventsFound,
		ev.MoviesAdded, ev.MoviesUpdated, ev.MoviesFound,
		strings.Join(sources, ","), len(ev.Errors))
}
