package messaging

import (
	"context"

	"github.com/registrylabs/registrar-indexer/internal/domain"
)

// Publisher defines the interface for publishing reconciled registrar events
// to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a registrar event after its batch is persisted
	PublishEvent(ctx context.Context, event *domain.RegistrarEvent) error
	// Close closes the connection
	Close()
}
