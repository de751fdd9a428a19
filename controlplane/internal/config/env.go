package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAddr            = ":8080"
	DefaultDBPath          = "controlplane.db"
	DefaultPolicyName      = "default"
	DefaultGatewayAuthPath = "/wifidog/auth"
	DefaultPendingTTL      = 10 * time.Minute
	DefaultIdleTimeout     = 15 * time.Minute
	DefaultSweepInterval   = time.Minute
)

type Env struct {
	Addr   string
	DBPath string

	JWTSecret    string
	AdminUser    string
	AdminPass    string
	CookieSecure bool

	DefaultPolicy string
	PolicyFile    string
	RedisURL      string

	// GatewayAuthPath is the path on the gateway's own web server that
	// accepts the provisioned token.
	GatewayAuthPath string

	PendingTTL    time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	// TrustedProxies lists the peers whose X-Forwarded-For / X-Real-IP
	// headers are believed. Empty means the socket address is always used.
	TrustedProxies []netip.Prefix
}

func LoadEnv() (Env, error) {
	env := Env{
		Addr:            getenv("PORTAL_ADDR", DefaultAddr),
		DBPath:          getenv("PORTAL_DB_PATH", DefaultDBPath),
		JWTSecret:       os.Getenv("PORTAL_JWT_SECRET"),
		AdminUser:       os.Getenv("PORTAL_ADMIN_USER"),
		AdminPass:       os.Getenv("PORTAL_ADMIN_PASS"),
		DefaultPolicy:   getenv("PORTAL_DEFAULT_POLICY", DefaultPolicyName),
		PolicyFile:      os.Getenv("PORTAL_POLICY_FILE"),
		RedisURL:        os.Getenv("PORTAL_REDIS_URL"),
		GatewayAuthPath: getenv("PORTAL_GATEWAY_AUTH_PATH", DefaultGatewayAuthPath),
	}

	var errs []string
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"PORTAL_PENDING_TTL", DefaultPendingTTL, &env.PendingTTL},
		{"PORTAL_IDLE_TIMEOUT", DefaultIdleTimeout, &env.IdleTimeout},
		{"PORTAL_SWEEP_INTERVAL", DefaultSweepInterval, &env.SweepInterval},
	}
	for _, d := range durations {
		*d.dest = d.def
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive duration", d.key))
			continue
		}
		*d.dest = parsed
	}

	if v := os.Getenv("PORTAL_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, "PORTAL_COOKIE_SECURE must be a boolean")
		}
		env.CookieSecure = b
	}
	if v := os.Getenv("PORTAL_TRUSTED_PROXIES"); v != "" {
		prefixes, err := ParseTrustedProxies(v)
		if err != nil {
			errs = append(errs, "PORTAL_TRUSTED_PROXIES: "+err.Error())
		}
		env.TrustedProxies = prefixes
	}
	if !strings.HasPrefix(env.GatewayAuthPath, "/") {
		errs = append(errs, "PORTAL_GATEWAY_AUTH_PATH must start with /")
	}

	if len(errs) > 0 {
		return Env{}, errors.New(strings.Join(errs, "; "))
	}
	return env, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (e Env) ValidateServe() error {
	var errs []string
	if strings.TrimSpace(e.JWTSecret) == "" {
		errs = append(errs, "PORTAL_JWT_SECRET is required")
	}
	if e.AdminUser == "" || e.AdminPass == "" {
		errs = append(errs, "PORTAL_ADMIN_USER and PORTAL_ADMIN_PASS are required")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ParseTrustedProxies reads a comma-separated list of CIDRs or single
// addresses.
func ParseTrustedProxies(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("invalid prefix %q", part)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q", part)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
