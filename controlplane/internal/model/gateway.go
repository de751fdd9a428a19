package model

import (
	"time"

	"github.com/google/uuid"
)

// Gateway is a field access point running the captive-portal client.
// GatewayID is the identifier the device reports as gw_id.
type Gateway struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	GatewayID       string     `gorm:"column:gateway_id;uniqueIndex;not null" json:"gateway_id"`
	Name            string     `gorm:"not null" json:"name"`
	MACAddress      string     `gorm:"column:mac_address" json:"mac_address,omitempty"`
	ManagementIP    string     `gorm:"column:management_ip" json:"management_ip,omitempty"`
	SysUptime       int64      `gorm:"column:sys_uptime" json:"sys_uptime"`
	SysLoad         float64    `gorm:"column:sys_load" json:"sys_load"`
	SysMemFree      int64      `gorm:"column:sys_memfree" json:"sys_memfree"`
	WifidogUptime   int64      `gorm:"column:wifidog_uptime" json:"wifidog_uptime"`
	LastHeartbeatAt *time.Time `gorm:"column:last_heartbeat_at" json:"last_heartbeat_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (Gateway) TableName() string {
	return "gateways"
}

func NewGateway(gatewayID, name, macAddress string) Gateway {
	if name == "" {
		name = gatewayID
	}
	return Gateway{
		ID:         uuid.NewString(),
		GatewayID:  gatewayID,
		Name:       name,
		MACAddress: NormalizeMAC(macAddress),
		CreatedAt:  time.Now().UTC(),
	}
}
