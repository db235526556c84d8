// internal/domain/diagnostics/service.go
package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/pkg/metrics"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service records remote fallbacks for operators. It counts every fallback,
// logs it and, when a database is configured, persists it.
type Service struct {
	db           *gorm.DB
	metrics      *metrics.Metrics
	logger       logrus.FieldLogger
	writeTimeout time.Duration
}

// NewService creates a diagnostics service. db may be nil to skip persistence.
func NewService(db *gorm.DB, m *metrics.Metrics, writeTimeout time.Duration, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Second
	}
	return &Service{
		db:           db,
		metrics:      m,
		logger:       logger.WithField("component", "cart_diagnostics"),
		writeTimeout: writeTimeout,
	}
}

var _ cart.FallbackObserver = (*Service)(nil)

// RemoteFallback implements cart.FallbackObserver
func (s *Service) RemoteFallback(ctx context.Context, fb cart.Fallback) {
	s.metrics.ObserveFallback(string(fb.Operation))

	errText := ""
	if fb.Err != nil {
		errText = fb.Err.Error()
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": fb.SessionID,
		"operation":  string(fb.Operation),
		"item_id":    fb.ItemID,
		"product_id": fb.ProductID,
		"error":      errText,
	}).Warn("Cart diverged from commerce API")

	if s.db == nil {
		return
	}

	occurredAt := fb.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	event := DivergenceEvent{
		SessionID:  fb.SessionID,
		Operation:  string(fb.Operation),
		ItemID:     fb.ItemID,
		ProductID:  fb.ProductID,
		Error:      errText,
		OccurredAt: occurredAt,
	}

	// The shopper's request may already be finishing; the record outlives it.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.db.WithContext(writeCtx).Create(&event).Error; err != nil {
		s.logger.WithError(err).Error("Failed to persist divergence event")
	}
}

// List returns divergence events, newest first, with the total matching count
func (s *Service) List(ctx context.Context, filter ListFilter) ([]DivergenceEvent, int64, error) {
	if s.db == nil {
		return []DivergenceEvent{}, 0, nil
	}

	query := s.db.WithContext(ctx).Model(&DivergenceEvent{})
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.Operation != "" {
		query = query.Where("operation = ?", filter.Operation)
	}
	if !filter.Since.IsZero() {
		query = query.Where("occurred_at >= ?", filter.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count divergence events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var events []DivergenceEvent
	err := query.Order("occurred_at DESC").Limit(limit).Offset(filter.Offset).Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list divergence events: %w", err)
	}

	return events, total, nil
}

// Summary counts divergence events per operation since the given time
func (s *Service) Summary(ctx context.Context, since time.Time) ([]OperationCount, error) {
	if s.db == nil {
		return []OperationCount{}, nil
	}

	var counts []OperationCount
	err := s.db.WithContext(ctx).
		Model(&DivergenceEvent{}).
		Select("operation, COUNT(*) AS count").
		Where("occurred_at >= ?", since).
		Group("operation").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize divergence events: %w", err)
	}

	return counts, nil
}
