package service

import (
	"context"
	"fmt"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/event"
	domainwf "github.com/garyjia/procurement-hub/internal/domain/workflow"
)

// NotificationService tells people when a purchase order needs them
type NotificationService interface {
	// HandleStatusChanged notifies the approver when an order enters pending_approval
	HandleStatusChanged(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	sender     port.MessageSender
	approverID string
	logger     Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(sender port.MessageSender, approverID string, logger Logger) NotificationService {
	return &notificationServiceImpl{
		sender:     sender,
		approverID: approverID,
		logger:     logger,
	}
}

// HandleStatusChanged sends an approval request message
func (s *notificationServiceImpl) HandleStatusChanged(ctx context.Context, evt *event.Event) error {
	if domainwf.Status(evt.GetPayloadString(event.KeyNewStatus)) != domainwf.StatusPendingApproval {
		return nil
	}
	if s.approverID == "" {
		s.logger.Info("No approver configured, skipping notification", "purchase_order_id", evt.PurchaseOrderID)
		return nil
	}

	message := buildApprovalMessage(evt)

	if err := s.sender.SendText(ctx, s.approverID, message); err != nil {
		s.logger.Error("Failed to send approval notification",
			"error", err,
			"purchase_order_id", evt.PurchaseOrderID,
			"receive_id", s.approverID,
		)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Approval notification sent",
		"purchase_order_id", evt.PurchaseOrderID,
		"number", evt.PONumber,
		"receive_id", s.approverID,
	)
	return nil
}

func buildApprovalMessage(evt *event.Event) string {
	msg := fmt.Sprintf("Purchase order %s is waiting for your approval.\n\nSupplier: %s\nRevision: %d\nSubmitted by: %s",
		evt.PONumber,
		evt.GetPayloadString(event.KeySupplierID),
		evt.GetPayloadInt(event.KeyRev),
		evt.GetPayloadString(event.KeyActor),
	)
	if note := evt.GetPayloadString(event.KeyNote); note != "" {
		msg += "\nNote: " + note
	}
	if evt.GetPayloadString(event.KeyPreviousStatus) == domainwf.StatusAmended.String() {
		msg += "\n\nThis is a resubmission after an amendment."
	}
	return msg
}
