package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dispatcher polls the intent outbox and hands pending intents to the
// Sink. Sink failures mark the intent failed and it is retried on the
// next poll; the failure never propagates back to the mutation that
// produced the intent.
type Dispatcher struct {
	db       *gorm.DB
	sink     Sink
	logger   *zap.Logger
	interval time.Duration
	batch    int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewDispatcher creates a dispatcher polling at the given interval.
func NewDispatcher(db *gorm.DB, sink Sink, logger *zap.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		db:       db,
		sink:     sink,
		logger:   logger,
		interval: interval,
		batch:    100,
	}
}

// Start begins polling in a background goroutine.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.DispatchPending(ctx); err != nil {
					d.logger.Error("Failed to dispatch notification intents", zap.Error(err))
				}
			}
		}
	}()

	d.logger.Info("Notification dispatcher started", zap.Duration("interval", d.interval))
}

// Stop halts polling and waits for the in-flight poll to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.cancel()
	<-d.done
	d.running = false
	d.logger.Info("Notification dispatcher stopped")
}

// DispatchPending delivers one batch of pending and previously failed
// intents. Exported so the sweep can be driven directly in tests.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	var intents []Intent
	err := d.db.WithContext(ctx).
		Where("status IN ?", []IntentStatus{IntentPending, IntentFailed}).
		Order("id").
		Limit(d.batch).
		Find(&intents).Error
	if err != nil {
		return err
	}

	for i := range intents {
		intent := &intents[i]
		now := time.Now().UTC()
		if err := d.sink.Emit(intent.Kind, intent.Payload); err != nil {
			d.logger.Warn("Notification sink rejected intent",
				zap.Uint("intent_id", intent.ID),
				zap.String("kind", string(intent.Kind)),
				zap.Error(err))
			d.markIntent(ctx, intent, map[string]interface{}{
				"status":     IntentFailed,
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": err.Error(),
			})
			continue
		}
		d.markIntent(ctx, intent, map[string]interface{}{
			"status":        IntentDispatched,
			"attempts":      gorm.Expr("attempts + 1"),
			"dispatched_at": now,
			"last_error":    "",
		})
	}
	return nil
}

// markIntent records the delivery outcome. A failed status write means
// the intent is re-delivered on the next poll, so it must be visible in
// the log.
func (d *Dispatcher) markIntent(ctx context.Context, intent *Intent, values map[string]interface{}) {
	if err := d.db.WithContext(ctx).Model(intent).Updates(values).Error; err != nil {
		d.logger.Error("Failed to update notification intent status",
			zap.Uint("intent_id", intent.ID),
			zap.String("kind", string(intent.Kind)),
			zap.Error(err))
	}
}

// LogSink is an in-process Sink that records intents in the service log.
// Real transports (email, SMS) live with the external notification
// sender.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a Sink that logs every intent.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(kind EventKind, payload []byte) error {
	s.logger.Info("Notification intent",
		zap.String("kind", string(kind)),
		zap.ByteString("payload", payload))
	return nil
}
