// Package worker consumes transaction sync events and mirrors the rows.
package worker

import (
	"context"
	"errors"

	"finanzas/internal/amqp"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// Consumer delivers sync messages until ctx is done.
type Consumer interface {
	ConsumeTransactionsSync(ctx context.Context, handler amqp.Handler) error
}

// Syncer is implemented by *services.SyncProcessor.
type Syncer interface {
	SyncBatch(ctx context.Context, ownerID int64, ids []int64) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type SyncWorker struct {
	consumer Consumer
	syncer   Syncer
	logger   *log.Logger
}

func NewSyncWorker(consumer Consumer, syncer Syncer, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{consumer: consumer, syncer: syncer, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleSyncMessage mirrors the rows named by msg. Mirror failures are
// acknowledged because the rows are flagged and retried by the sweeper;
// any other failure requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionsSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		"owner_id", msg.OwnerID,
		"batch_id", msg.BatchID,
		"source", msg.Source,
		"count", len(msg.IDs))

	err := w.syncer.SyncBatch(ctx, msg.OwnerID, msg.IDs)
	if errors.Is(err, services.ErrMirrorFailed) {
		w.logger.WarnContext(ctx, "Mirror rejected batch, rows flagged for retry",
			"owner_id", msg.OwnerID, "batch_id", msg.BatchID, "error", err)
		return nil
	}
	return err
}

// Run starts the pending-row sweeper and consumes messages until ctx is
// cancelled or the consumer fails.
func (w *SyncWorker) Run(ctx context.Context) error {
	if err := w.syncer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := w.syncer.Stop(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("Sweeper did not stop cleanly", "error", err)
		}
	}()

	err := w.consumer.ConsumeTransactionsSync(ctx, w.HandleSyncMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
