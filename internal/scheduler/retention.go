package scheduler

import (
	"context"

	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	"go.uber.org/zap"
)

// CleanupWebhookEvents deletes journaled webhook events older than the retention window.
func (s *Scheduler) CleanupWebhookEvents(ctx context.Context) error {
	retentionDays := s.cfg.WebhookRetentionDays
	if retentionDays <= 0 {
		s.log.Debug("webhook retention disabled", zap.Int("days", retentionDays))
		return nil
	}

	cutoff := s.clock.Now(ctx).AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Delete(&paymentdomain.EventRecord{}, "received_at < ?", cutoff)
	if result.Error != nil {
		return result.Error
	}

	s.log.Info("cleanup webhook events completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", result.RowsAffected))
	return nil
}
