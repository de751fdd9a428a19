package repository

import (
	"context"
	"time"

	"captive-portal/controlplane/internal/model"
)

func (r *GormRepository) CreateCounterReport(ctx context.Context, rep *model.CounterReport) error {
	return mapErr(r.db.WithContext(ctx).Create(rep).Error)
}

func (r *GormRepository) ListCounterReports(ctx context.Context, sessionID string, limit int) ([]model.CounterReport, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("observed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.CounterReport
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) CounterBaselineBefore(ctx context.Context, sessionID string, before time.Time) (CounterBaseline, error) {
	var out struct {
		Incoming int64
		Outgoing int64
	}
	err := r.db.WithContext(ctx).Model(&model.CounterReport{}).
		Select("COALESCE(MAX(incoming), 0) AS incoming, COALESCE(MAX(outgoing), 0) AS outgoing").
		Where("session_id = ? AND observed_at < ?", sessionID, before).
		Scan(&out).Error
	if err != nil {
		return CounterBaseline{}, err
	}
	return CounterBaseline{Incoming: out.Incoming, Outgoing: out.Outgoing}, nil
}
