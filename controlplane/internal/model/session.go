package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	StatusPending SessionStatus = "PENDING"
	StatusAuth    SessionStatus = "AUTH"
	StatusRevoked SessionStatus = "REVOKED"
	StatusExpired SessionStatus = "EXPIRED"
	StatusBlocked SessionStatus = "BLOCKED"
)

// End reasons recorded on terminal sessions. Policy denials use the
// evaluator's reason string instead.
const (
	ReasonLogout      = "logout"
	ReasonSuperseded  = "superseded"
	ReasonTokenUnused = "token_unused"
	ReasonIdleTimeout = "idle_timeout"
	ReasonAdminBlock  = "admin_block"
)

// LiveStatuses are the statuses a session can still leave.
var LiveStatuses = []SessionStatus{StatusPending, StatusAuth}

func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusRevoked, StatusExpired, StatusBlocked:
		return true
	}
	return false
}

// Session is one client's captive-portal grant. The bearer token is never
// stored; TokenHash is its sha256 digest.
type Session struct {
	ID            string        `gorm:"primaryKey" json:"id"`
	UserID        string        `gorm:"column:user_id;not null;index" json:"user_id"`
	GatewayID     string        `gorm:"column:gateway_id;not null;index" json:"gateway_id"`
	PolicyID      *string       `gorm:"column:policy_id" json:"policy_id,omitempty"`
	ClientMAC     string        `gorm:"column:client_mac;not null;index" json:"client_mac"`
	ClientIP      string        `gorm:"column:client_ip;index" json:"client_ip"`
	SSID          string        `gorm:"column:ssid" json:"ssid,omitempty"`
	TokenHash     string        `gorm:"column:token_hash;uniqueIndex;not null" json:"-"`
	Status        SessionStatus `gorm:"column:status;not null;index" json:"status"`
	StartedAt     time.Time     `gorm:"column:started_at;not null;index" json:"started_at"`
	LastSeenAt    time.Time     `gorm:"column:last_seen_at;not null;index" json:"last_seen_at"`
	EndedAt       *time.Time    `gorm:"column:ended_at" json:"ended_at,omitempty"`
	BytesIn       int64         `gorm:"column:bytes_in;not null;default:0" json:"bytes_in"`
	BytesOut      int64         `gorm:"column:bytes_out;not null;default:0" json:"bytes_out"`
	UptimeSeconds int64         `gorm:"column:uptime_seconds;not null;default:0" json:"uptime_seconds"`
	EndReason     string        `gorm:"column:end_reason" json:"end_reason,omitempty"`
}

func NewSession(userID, gatewayID, clientMAC, clientIP, ssid, tokenHash string, now time.Time) Session {
	return Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		GatewayID:  gatewayID,
		ClientMAC:  NormalizeMAC(clientMAC),
		ClientIP:   clientIP,
		SSID:       ssid,
		TokenHash:  tokenHash,
		Status:     StatusPending,
		StartedAt:  now,
		LastSeenAt: now,
	}
}

func (s Session) TotalBytes() int64 {
	return s.BytesIn + s.BytesOut
}
