package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"captive-portal/controlplane/internal/evaluator"
	"captive-portal/controlplane/internal/model"
)

// PolicyCatalog is the on-disk policy document:
//
//	policies:
//	  - name: default
//	    max_devices: 3
//	    max_uptime: 8h
//	    timezone: Europe/Berlin
//	    quotas: {daily: 1GB, weekly: 5GB}
//	    schedule:
//	      - {days: [mon, tue, wed, thu, fri], start: "07:00", end: "23:00"}
type PolicyCatalog struct {
	Policies []PolicyEntry `yaml:"policies" validate:"required,min=1,dive"`
}

type PolicyEntry struct {
	Name       string          `yaml:"name" validate:"required"`
	MaxDevices int             `yaml:"max_devices" validate:"gte=0"`
	MaxUptime  string          `yaml:"max_uptime" validate:"omitempty,duration"`
	Timezone   string          `yaml:"timezone" validate:"omitempty,timezone"`
	Quotas     QuotaEntry      `yaml:"quotas"`
	Schedule   []ScheduleEntry `yaml:"schedule" validate:"dive"`
	Active     *bool           `yaml:"active"`
}

// QuotaEntry sizes accept plain byte counts or units such as "500MB".
type QuotaEntry struct {
	Daily   string `yaml:"daily" validate:"omitempty,bytesize"`
	Weekly  string `yaml:"weekly" validate:"omitempty,bytesize"`
	Monthly string `yaml:"monthly" validate:"omitempty,bytesize"`
}

type ScheduleEntry struct {
	Days  []string `yaml:"days" validate:"dive,weekday"`
	Start string   `yaml:"start" validate:"required,clock"`
	End   string   `yaml:"end" validate:"required,clock"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	_ = v.RegisterValidation("bytesize", func(fl validator.FieldLevel) bool {
		_, err := humanize.ParseBytes(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := evaluator.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := evaluator.ParseWeekday(fl.Field().String())
		return err == nil
	})
	return v
}

func LoadPolicyCatalog(path string) ([]model.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy catalog: %w", err)
	}
	return ParsePolicyCatalog(data)
}

func ParsePolicyCatalog(data []byte) ([]model.Policy, error) {
	var cat PolicyCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse policy catalog: %w", err)
	}
	if err := validate.Struct(cat); err != nil {
		return nil, fmt.Errorf("invalid policy catalog: %w", err)
	}

	seen := make(map[string]bool, len(cat.Policies))
	out := make([]model.Policy, 0, len(cat.Policies))
	for _, e := range cat.Policies {
		name := strings.TrimSpace(e.Name)
		if seen[name] {
			return nil, fmt.Errorf("invalid policy catalog: duplicate policy %q", name)
		}
		seen[name] = true
		p, err := e.toModel()
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (e PolicyEntry) toModel() (model.Policy, error) {
	p := model.Policy{
		Name:       strings.TrimSpace(e.Name),
		MaxDevices: e.MaxDevices,
		Timezone:   e.Timezone,
		Active:     e.Active == nil || *e.Active,
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if e.MaxUptime != "" {
		d, err := time.ParseDuration(e.MaxUptime)
		if err != nil {
			return model.Policy{}, err
		}
		p.MaxUptimeSeconds = int64(d / time.Second)
	}
	sizes := []struct {
		raw  string
		dest *int64
	}{
		{e.Quotas.Daily, &p.DailyBytes},
		{e.Quotas.Weekly, &p.WeeklyBytes},
		{e.Quotas.Monthly, &p.MonthlyBytes},
	}
	for _, s := range sizes {
		if s.raw == "" {
			continue
		}
		n, err := humanize.ParseBytes(s.raw)
		if err != nil {
			return model.Policy{}, err
		}
		*s.dest = int64(n)
	}
	for _, w := range e.Schedule {
		p.Schedule = append(p.Schedule, model.ScheduleWindow{Days: w.Days, Start: w.Start, End: w.End})
	}
	return p, nil
}
