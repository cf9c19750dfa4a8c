package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carecircle/hub/internal/dispatch"
)

// ReceiptMarker records delivery outcomes on dispatches.
type ReceiptMarker interface {
	MarkDelivered(ctx context.Context, dispatchID string, at time.Time) error
	MarkFailed(ctx context.Context, dispatchID, reason string) error
}

// HandleReceipt returns a handler that applies receipts to dispatch history.
// Receipts for dispatches that no longer exist are acknowledged and dropped.
func HandleReceipt(marker ReceiptMarker, logger *slog.Logger) ReceiptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, r Receipt) error {
		var err error
		switch r.Status {
		case ReceiptDelivered:
			at := r.DeliveredAt
			if at.IsZero() {
				at = time.Now()
			}
			err = marker.MarkDelivered(ctx, r.DispatchID, at)
		case ReceiptFailed:
			err = marker.MarkFailed(ctx, r.DispatchID, r.Error)
			logger.Warn("Dispatch delivery failed", "dispatch_id", r.DispatchID, "error", r.Error)
		default:
			return fmt.Errorf("unknown receipt status: %s", r.Status)
		}

		if errors.Is(err, dispatch.ErrDispatchNotFound) {
			logger.Info("Receipt for unknown dispatch", "dispatch_id", r.DispatchID)
			return nil
		}
		return err
	}
}
