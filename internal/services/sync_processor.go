package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

type SyncProcessorConfig struct {
	// PollInterval is how often pending rows are swept (default: 1m).
	PollInterval time.Duration
	// BatchSize caps rows per sweep (default: 50).
	BatchSize int
	// GracePeriod skips rows younger than this; the AMQP path usually
	// handles them first (default: 2m).
	GracePeriod time.Duration
	// RetryInterval is how often rows in error go back to pending (default: 1h).
	RetryInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:  time.Minute,
		BatchSize:     50,
		GracePeriod:   2 * time.Minute,
		RetryInterval: time.Hour,
	}
}

// SyncStore is the slice of the SQLite repository used for mirroring.
type SyncStore interface {
	PendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	TransactionsByIDs(ctx context.Context, ownerID int64, ids []int64) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, ids ...int64) error
	MarkSyncError(ctx context.Context, ids ...int64) error
	RetryFailedSyncs(ctx context.Context) (int64, error)
}

// ErrMirrorFailed marks SyncBatch errors raised by the mirror itself; the
// affected rows are already flagged for a later retry.
var ErrMirrorFailed = errors.New("mirror append failed")

// Mirror receives stored transactions, e.g. a Google Sheet.
type Mirror interface {
	AppendTransactions(ctx context.Context, ownerID int64, txs []core.Transaction) error
}

// SyncProcessor copies stored transactions to the mirror. SyncBatch serves
// AMQP deliveries; the poll loop catches rows whose event was never
// published or consumed.
type SyncProcessor struct {
	store  SyncStore
	mirror Mirror
	config SyncProcessorConfig
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store SyncStore, mirror Mirror, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	def := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncProcessor{
		store:  store,
		mirror: mirror,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// SyncBatch mirrors the owner's ids and records the outcome. Ids that no
// longer exist are ignored. On failure the rows are flagged and the error
// is returned.
func (p *SyncProcessor) SyncBatch(ctx context.Context, ownerID int64, ids []int64) error {
	txs, err := p.store.TransactionsByIDs(ctx, ownerID, ids)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	if len(txs) == 0 {
		p.logger.DebugContext(ctx, "Nothing to sync", "owner_id", ownerID, "requested", len(ids))
		return nil
	}
	found := make([]int64, len(txs))
	for i, t := range txs {
		found[i] = t.ID
	}

	if err := p.mirror.AppendTransactions(ctx, ownerID, txs); err != nil {
		if markErr := p.store.MarkSyncError(ctx, found...); markErr != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync error", "owner_id", ownerID, "error", markErr)
		}
		return fmt.Errorf("%w: %w", ErrMirrorFailed, err)
	}
	if err := p.store.MarkSynced(ctx, found...); err != nil {
		// The mirror already has the rows.
		p.logger.WarnContext(ctx, "Failed to mark transactions as synced", "owner_id", ownerID, "error", err)
	}
	p.logger.InfoContext(ctx, "Synced transactions to mirror", "owner_id", ownerID, "count", len(found))
	return nil
}

// Start launches the poll loop. It fails when already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop waits for the loop to exit or ctx to expire.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()
	retryTicker := time.NewTicker(p.config.RetryInterval)
	defer retryTicker.Stop()

	p.Sweep(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.Sweep(ctx)
		case <-retryTicker.C:
			p.retryFailed(ctx)
		}
	}
}

// Sweep mirrors one batch of pending rows older than the grace period and
// returns how many were handed to the mirror.
func (p *SyncProcessor) Sweep(ctx context.Context) int {
	pending, err := p.store.PendingSync(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list pending syncs", "error", err)
		return 0
	}

	cutoff := p.now().Add(-p.config.GracePeriod)
	byOwner := make(map[int64][]int64)
	var owners []int64
	for _, row := range pending {
		if row.CreatedAt.After(cutoff) {
			continue
		}
		if _, seen := byOwner[row.OwnerID]; !seen {
			owners = append(owners, row.OwnerID)
		}
		byOwner[row.OwnerID] = append(byOwner[row.OwnerID], row.ID)
	}

	synced := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			return synced
		}
		ids := byOwner[owner]
		if err := p.SyncBatch(ctx, owner, ids); err != nil {
			p.logger.WarnContext(ctx, "Sweep sync failed", "owner_id", owner, "count", len(ids), "error", err)
			continue
		}
		synced += len(ids)
	}
	if synced > 0 {
		p.logger.InfoContext(ctx, "Swept pending transactions", "count", synced)
	}
	return synced
}

func (p *SyncProcessor) retryFailed(ctx context.Context) {
	n, err := p.store.RetryFailedSyncs(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to reset failed syncs", "error", err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Failed syncs scheduled for retry", "count", n)
	}
}
