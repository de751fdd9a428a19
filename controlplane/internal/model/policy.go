package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Window names a byte quota bucket.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// Windows lists quota windows from the smallest to the largest.
var Windows = []Window{WindowDaily, WindowWeekly, WindowMonthly}

// ScheduleWindow allows access on the listed weekdays between Start and End
// (local "HH:MM" in the policy timezone). Start after End wraps past midnight.
type ScheduleWindow struct {
	Days  []string `json:"days" yaml:"days"`
	Start string   `json:"start" yaml:"start"`
	End   string   `json:"end" yaml:"end"`
}

// Policy is a named bundle of access rules. Zero limits mean "unlimited".
type Policy struct {
	ID               string           `gorm:"primaryKey" json:"id"`
	Name             string           `gorm:"uniqueIndex;not null" json:"name"`
	Version          int              `gorm:"not null;default:1" json:"version"`
	MaxDevices       int              `gorm:"column:max_devices" json:"max_devices"`
	DailyBytes       int64            `gorm:"column:daily_bytes" json:"daily_bytes"`
	WeeklyBytes      int64            `gorm:"column:weekly_bytes" json:"weekly_bytes"`
	MonthlyBytes     int64            `gorm:"column:monthly_bytes" json:"monthly_bytes"`
	MaxUptimeSeconds int64            `gorm:"column:max_uptime_seconds" json:"max_uptime_seconds"`
	Timezone         string           `gorm:"column:timezone;not null;default:UTC" json:"timezone"`
	ScheduleJSON     string           `gorm:"column:schedule_json;not null;default:'[]'" json:"-"`
	Schedule         []ScheduleWindow `gorm:"-" json:"schedule"`
	Active           bool             `gorm:"not null" json:"active"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Policy) TableName() string {
	return "policies"
}

func NewPolicy(name string) Policy {
	return Policy{
		ID:       uuid.NewString(),
		Name:     name,
		Version:  1,
		Timezone: "UTC",
		Active:   true,
	}
}

// Limit returns the byte quota configured for w, or 0 when there is none.
func (p Policy) Limit(w Window) int64 {
	switch w {
	case WindowDaily:
		return p.DailyBytes
	case WindowWeekly:
		return p.WeeklyBytes
	case WindowMonthly:
		return p.MonthlyBytes
	}
	return 0
}

// Location resolves the policy timezone, falling back to UTC.
func (p Policy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SameRules reports whether two policies enforce identical rules.
func (p Policy) SameRules(o Policy) bool {
	if p.MaxDevices != o.MaxDevices || p.DailyBytes != o.DailyBytes ||
		p.WeeklyBytes != o.WeeklyBytes || p.MonthlyBytes != o.MonthlyBytes ||
		p.MaxUptimeSeconds != o.MaxUptimeSeconds || p.Timezone != o.Timezone ||
		p.Active != o.Active {
		return false
	}
	a, _ := json.Marshal(p.Schedule)
	b, _ := json.Marshal(o.Schedule)
	return string(a) == string(b)
}

func (p *Policy) ParseSchedule() error {
	if p.ScheduleJSON == "" || p.ScheduleJSON == "[]" {
		p.Schedule = nil
		return nil
	}
	return json.Unmarshal([]byte(p.ScheduleJSON), &p.Schedule)
}

func (p *Policy) EncodeSchedule() error {
	if len(p.Schedule) == 0 {
		p.ScheduleJSON = "[]"
		return nil
	}
	data, err := json.Marshal(p.Schedule)
	if err != nil {
		return err
	}
	p.ScheduleJSON = string(data)
	return nil
}

func (p *Policy) BeforeSave(*gorm.DB) error {
	return p.EncodeSchedule()
}

func (p *Policy) AfterFind(*gorm.DB) error {
	return p.ParseSchedule()
}
