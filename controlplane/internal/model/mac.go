package model

import (
	"net"
	"strings"
)

// NormalizeMAC returns the upper-case colon form of a hardware address.
// Values that do not parse are upper-cased and returned as-is so that
// lookups stay consistent with whatever the gateway sent.
func NormalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	if mac == "" {
		return ""
	}
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return strings.ToUpper(mac)
	}
	return strings.ToUpper(hw.String())
}
