package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/domain"
	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/messaging"
	"github.com/registrylabs/registrar-indexer/internal/metrics"
)

// Config holds the configuration for the NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

const subjectPrefix = "registrar.events"

// duplicateWindow is how long JetStream remembers message ids. A batch retry
// republishes the same event ids, so replays inside the window are dropped
// broker-side.
const duplicateWindow = 10 * time.Minute

type publisher struct {
	nc   adapter.NatsConn
	js   adapter.JetStream
	json adapter.JSON
}

// NewPublisher connects to NATS and provisions the registrar event stream
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Duplicates: duplicateWindow,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to provision stream %s: %w", cfg.StreamName, err)
	}

	return &publisher{
		nc:   nc,
		js:   js,
		json: jsonAdapter,
	}, nil
}

// PublishEvent publishes a registrar event to NATS JetStream. The event id
// doubles as the JetStream message id, so republishing after a batch retry
// is deduplicated by the broker.
func (p *publisher) PublishEvent(ctx context.Context, event *domain.RegistrarEvent) error {
	logger.DebugCtx(ctx, "publishing registrar event",
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)))

	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := buildSubject(event)

	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		metrics.PublishedEvents.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.PublishedEvents.WithLabelValues("success").Inc()
	return nil
}

// buildSubject constructs the NATS subject for the event.
// Format: registrar.events.{kind}, e.g. registrar.events.registration
func buildSubject(event *domain.RegistrarEvent) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, event.Kind)
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}
