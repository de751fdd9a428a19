package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"captive-portal/controlplane/internal/model"
)

func (r *GormRepository) CreateSession(ctx context.Context, s *model.Session) error {
	return mapErr(r.db.WithContext(ctx).Create(s).Error)
}

func (r *GormRepository) GetSession(ctx context.Context, id string) (model.Session, error) {
	var s model.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return model.Session{}, mapErr(err)
	}
	return s, nil
}

func (r *GormRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	if err := r.db.WithContext(ctx).First(&s, "token_hash = ?", tokenHash).Error; err != nil {
		return model.Session{}, mapErr(err)
	}
	return s, nil
}

func (r *GormRepository) LatestSessionByUser(ctx context.Context, userID string, statuses ...model.SessionStatus) (model.Session, error) {
	return r.latestSession(ctx, "user_id = ?", userID, statuses)
}

func (r *GormRepository) LatestSessionByIP(ctx context.Context, ip string, statuses ...model.SessionStatus) (model.Session, error) {
	return r.latestSession(ctx, "client_ip = ?", ip, statuses)
}

func (r *GormRepository) LatestSessionByMAC(ctx context.Context, mac string, statuses ...model.SessionStatus) (model.Session, error) {
	return r.latestSession(ctx, "client_mac = ?", model.NormalizeMAC(mac), statuses)
}

func (r *GormRepository) latestSession(ctx context.Context, cond string, arg any, statuses []model.SessionStatus) (model.Session, error) {
	q := r.db.WithContext(ctx).Where(cond, arg)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var s model.Session
	if err := q.Order("started_at DESC").First(&s).Error; err != nil {
		return model.Session{}, mapErr(err)
	}
	return s, nil
}

func (r *GormRepository) ListSessions(ctx context.Context, f SessionFilter) ([]model.Session, error) {
	q := r.db.WithContext(ctx).Model(&model.Session{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.GatewayID != "" {
		q = q.Where("gateway_id = ?", f.GatewayID)
	}
	if f.ClientMAC != "" {
		q = q.Where("client_mac = ?", model.NormalizeMAC(f.ClientMAC))
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if !f.SeenSince.IsZero() {
		q = q.Where("last_seen_at >= ?", f.SeenSince)
	}
	if !f.StartedBefore.IsZero() {
		q = q.Where("started_at < ?", f.StartedBefore)
	}
	if !f.LastSeenBefore.IsZero() {
		q = q.Where("last_seen_at < ?", f.LastSeenBefore)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []model.Session
	if err := q.Order("started_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) TransitionSession(ctx context.Context, id string, from []model.SessionStatus, to model.SessionStatus, reason string, at time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if to.Terminal() {
		updates["ended_at"] = at
		updates["end_reason"] = reason
	} else {
		updates["last_seen_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) AssignSessionPolicy(ctx context.Context, id, policyID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND policy_id IS NULL", id).
		Update("policy_id", policyID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) MergeSessionCounters(ctx context.Context, id string, incoming, outgoing, uptime int64, seenAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND status = ?", id, model.StatusAuth).
		Updates(map[string]any{
			"bytes_in":       gorm.Expr("MAX(bytes_in, ?)", incoming),
			"bytes_out":      gorm.Expr("MAX(bytes_out, ?)", outgoing),
			"uptime_seconds": gorm.Expr("MAX(uptime_seconds, ?)", uptime),
			"last_seen_at":   seenAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
