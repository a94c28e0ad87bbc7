package port

import (
	"context"

	"github.com/garyjia/procurement-hub/internal/domain/entity"
	"github.com/garyjia/procurement-hub/internal/domain/event"
)

// EventPublisher forwards domain events to an external broker
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Close() error
}

// MessageSender delivers chat notifications to a single recipient
type MessageSender interface {
	SendText(ctx context.Context, receiveID string, text string) error
}

// ExportDocument is everything rendered into a purchase order workbook
type ExportDocument struct {
	PurchaseOrder *entity.PurchaseOrder
	History       []*entity.StatusEvent
}

// Exporter renders a purchase order into a downloadable file
type Exporter interface {
	Export(ctx context.Context, doc *ExportDocument) ([]byte, error)
	ContentType() string
	FileExtension() string
}
