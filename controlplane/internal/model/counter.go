package model

import (
	"time"

	"github.com/google/uuid"
)

// CounterReport is an append-only audit record of one traffic sample sent by
// a gateway. Stale is set when any reported value was below the session's
// recorded cumulative total.
type CounterReport struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"column:session_id;not null;index" json:"session_id"`
	GatewayID  string    `gorm:"column:gateway_id;index" json:"gateway_id"`
	ObservedAt time.Time `gorm:"column:observed_at;not null;index" json:"observed_at"`
	Incoming   int64     `gorm:"column:incoming" json:"incoming"`
	Outgoing   int64     `gorm:"column:outgoing" json:"outgoing"`
	Uptime     *int64    `gorm:"column:uptime" json:"uptime,omitempty"`
	Raw        string    `gorm:"column:raw" json:"raw,omitempty"`
	Stale      bool      `gorm:"column:stale;not null;default:false" json:"stale"`
}

func (CounterReport) TableName() string {
	return "counter_reports"
}

func NewCounterReport(sessionID, gatewayID string, incoming, outgoing int64, uptime *int64, raw string, observedAt time.Time) CounterReport {
	return CounterReport{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		GatewayID:  gatewayID,
		ObservedAt: observedAt,
		Incoming:   incoming,
		Outgoing:   outgoing,
		Uptime:     uptime,
		Raw:        raw,
	}
}

