package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/internal/stock/events"
	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/pkg/logger"
)

// MonitorService scans stock levels and batch expiries and keeps the alert
// table in sync. Scans are stateless and idempotent: re-running against
// unchanged stock neither stacks duplicate alerts nor loses existing ones,
// and alerts whose condition cleared are resolved automatically.
type MonitorService struct {
	itemRepo      *repository.ItemRepository
	batchRepo     *repository.BatchRepository
	moveRepo      *repository.MoveRepository
	thresholdRepo *repository.ThresholdRepository
	alertRepo     *repository.AlertRepository
	publisher     *events.StockEventPublisher
	logger        *logger.Logger

	expiryHorizonDays int
}

var two = decimal.NewFromInt(2)

// NewMonitorService creates a new monitor service
func NewMonitorService(
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	moveRepo *repository.MoveRepository,
	thresholdRepo *repository.ThresholdRepository,
	alertRepo *repository.AlertRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
	expiryHorizonDays int,
) *MonitorService {
	if expiryHorizonDays <= 0 {
		expiryHorizonDays = 90
	}
	return &MonitorService{
		itemRepo:          itemRepo,
		batchRepo:         batchRepo,
		moveRepo:          moveRepo,
		thresholdRepo:     thresholdRepo,
		alertRepo:         alertRepo,
		publisher:         publisher,
		logger:            log,
		expiryHorizonDays: expiryHorizonDays,
	}
}

// ScanAll runs all scans. Logs errors but continues scanning.
func (s *MonitorService) ScanAll(ctx context.Context) error {
	scanners := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"low_stock", s.scanLowStock},
		{"expiry", s.scanExpiry},
	}

	var lastErr error
	for _, scanner := range scanners {
		if err := scanner.fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("scanner", scanner.name).Msg("stock scan failed")
			lastErr = err
		}
	}

	return lastErr
}

// scanLowStock evaluates every threshold rule against the current position.
// Item-level rules compare against the batch aggregate total; location
// rules recompute the location position from the ledger.
func (s *MonitorService) scanLowStock(ctx context.Context) error {
	thresholds, err := s.thresholdRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("scanLowStock: list thresholds: %w", err)
	}

	for _, th := range thresholds {
		item, err := s.itemRepo.GetByID(ctx, th.ItemID)
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", th.ItemID).Msg("scanLowStock: failed to load item")
			continue
		}
		if !item.IsActive {
			continue
		}

		onHand, err := s.batchRepo.TotalOnHand(ctx, th.ItemID)
		if th.LocationID != nil {
			onHand, err = s.moveRepo.SumForItemAtLocation(ctx, th.ItemID, *th.LocationID)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", th.ItemID).Msg("scanLowStock: failed to compute on-hand")
			continue
		}

		existing, err := s.alertRepo.FindUnresolved(ctx, repository.AlertTypeLowStock, th.ItemID, th.LocationID)
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", th.ItemID).Msg("scanLowStock: failed to check existing alert")
			continue
		}

		if onHand.GreaterThanOrEqual(th.MinQty) {
			if existing != nil {
				if err := s.alertRepo.Resolve(ctx, existing.ID, "monitor"); err != nil {
					s.logger.Error().Err(err).Str("alert_id", existing.ID).Msg("scanLowStock: failed to resolve alert")
					continue
				}
				s.publisher.PublishAlertResolved(ctx, existing, "monitor")
			}
			continue
		}

		severity := repository.SeverityWarning
		if onHand.IsZero() || onHand.LessThan(th.MinQty.Div(two)) {
			severity = repository.SeverityCritical
		}
		message := fmt.Sprintf("%s below minimum (%s/%s)", item.Name, onHand.String(), th.MinQty.String())

		if existing != nil {
			if existing.Message != message || existing.Severity != severity {
				if err := s.alertRepo.UpdateMessage(ctx, existing.ID, message, severity); err != nil {
					s.logger.Error().Err(err).Str("alert_id", existing.ID).Msg("scanLowStock: failed to refresh alert")
				}
			}
			continue
		}

		alert := &repository.Alert{
			AlertType:  repository.AlertTypeLowStock,
			ItemID:     th.ItemID,
			LocationID: th.LocationID,
			Severity:   severity,
			Message:    message,
		}
		if err := s.alertRepo.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("item_id", th.ItemID).Msg("scanLowStock: failed to create alert")
			continue
		}
		s.publisher.PublishAlertGenerated(ctx, alert)
	}

	return nil
}

// scanExpiry raises one alert per non-empty batch expiring within the
// horizon, and resolves alerts for batches that were since consumed.
func (s *MonitorService) scanExpiry(ctx context.Context) error {
	batches, err := s.batchRepo.GetExpiringBatches(ctx, s.expiryHorizonDays)
	if err != nil {
		return fmt.Errorf("scanExpiry: list expiring batches: %w", err)
	}

	expiring := make(map[string]bool, len(batches))
	for _, batch := range batches {
		expiring[batch.ID] = true

		existing, err := s.alertRepo.FindUnresolvedByBatch(ctx, repository.AlertTypeExpiry, batch.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("scanExpiry: failed to check existing alert")
			continue
		}
		if existing != nil {
			continue
		}

		item, err := s.itemRepo.GetByID(ctx, batch.ItemID)
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", batch.ItemID).Msg("scanExpiry: failed to load item")
			continue
		}

		lot := "no lot"
		if batch.LotNo != nil {
			lot = *batch.LotNo
		}
		alert := &repository.Alert{
			AlertType: repository.AlertTypeExpiry,
			ItemID:    batch.ItemID,
			BatchID:   &batch.ID,
			Severity:  repository.SeverityWarning,
			Message: fmt.Sprintf("%s lot %s expires %s (%s on hand)",
				item.Name, lot, batch.ExpiryDate.Format("2006-01-02"), batch.QtyOnHand.String()),
		}
		if err := s.alertRepo.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("scanExpiry: failed to create alert")
			continue
		}
		s.publisher.PublishAlertGenerated(ctx, alert)
	}

	// Resolve expiry alerts whose batch is no longer in the report,
	// either consumed to zero or adjusted.
	active, err := s.alertRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("scanExpiry: list active alerts: %w", err)
	}
	for _, alert := range active {
		if alert.AlertType != repository.AlertTypeExpiry || alert.BatchID == nil {
			continue
		}
		if expiring[*alert.BatchID] {
			continue
		}
		if err := s.alertRepo.Resolve(ctx, alert.ID, "monitor"); err != nil {
			s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("scanExpiry: failed to resolve alert")
			continue
		}
		s.publisher.PublishAlertResolved(ctx, alert, "monitor")
	}

	return nil
}

// ResolveAlert marks an alert resolved on behalf of an operator
func (s *MonitorService) ResolveAlert(ctx context.Context, id, resolvedBy string) error {
	if resolvedBy == "" {
		resolvedBy = "operator"
	}
	if err := s.alertRepo.Resolve(ctx, id, resolvedBy); err != nil {
		return err
	}
	s.logger.Info().Str("alert_id", id).Str("resolved_by", resolvedBy).Msg("alert resolved")
	return nil
}

// ListActiveAlerts returns unresolved alerts
func (s *MonitorService) ListActiveAlerts(ctx context.Context) ([]*repository.Alert, error) {
	return s.alertRepo.ListActive(ctx)
}

// ListAlerts returns alerts with pagination, optionally filtered by type
func (s *MonitorService) ListAlerts(ctx context.Context, alertType string, limit, offset int) ([]*repository.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.alertRepo.List(ctx, alertType, limit, offset)
}
