// Package service holds integrations that sit beside the request flow.
package service

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/venue-directory/internal/ingest"
	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/queue"
)

// RunPublisher announces finished sync runs on RabbitMQ. It dials per
// publish; runs are minutes apart so a pooled connection buys nothing.
type RunPublisher struct {
	url string
}

func NewRunPublisher(url string) *RunPublisher {
	return &RunPublisher{url: url}
}

// RunFinished implements ingest.Notifier. Errors are logged and returned;
// the orchestrator does not fail a run over them.
func (p *RunPublisher) RunFinished(ctx context.Context, s *ingest.Summary) error {
	body, err := json.Marshal(EventFromSummary(s))
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		logging.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logging.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.RunCompletedQueue, true, false, false, false, nil); err != nil {
		logging.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	err = ch.PublishWithContext(ctx, "", queue.RunCompletedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    s.RunID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		logging.Warn().Err(err).Str("run_id", s.RunID).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}

// EventFromSummary flattens an orchestration summary into the wire event.
func EventFromSummary(s *ingest.Summary) queue.RunCompletedEvent {
	ev := queue.RunCompletedEvent{
		RunID:         s.RunID,
		Success:       s.Success,
		StartedAt:     s.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:    s.FinishedAt.UTC().Format(time.RFC3339),
		EventsFound:   s.EventsFound,
		EventsAdded:   s.EventsAdded,
		EventsUpdated: s.EventsUpdated,
		MoviesFound:   s.MoviesFound,
		MoviesAdded:   s.MoviesAdded,
		MoviesUpdated: s.MoviesUpdated,
		Sources:       make([]queue.SourceOutcome, 0, len(s.Sources)),
		Errors:        s.Errors,
	}
	if ev.Errors == nil {
		ev.Errors = []string{}
	}
	for _, r := range s.Sources {
		ev.Sources = append(ev.Sources, queue.SourceOutcome{
			Source:  r.Source,
			Status:  r.Status,
			Found:   r.Found,
			Added:   r.Added,
			Updated: r.Updated,
			Skipped: r.Skipped,
		})
	}
	return ev
}
