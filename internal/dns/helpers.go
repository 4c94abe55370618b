package dns

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTTL is the record TTL, in seconds, used when a provider sets none.
const DefaultTTL = 300

// SplitHostname splits an FQDN into subdomain and domain parts.
// e.g. "app.example.com" → ("app", "example.com")
// e.g. "sub.app.example.com" → ("sub", "app.example.com")
func SplitHostname(fqdn string) (hostname, domain string) {
	fqdn = strings.TrimSuffix(fqdn, ".")
	parts := strings.SplitN(fqdn, ".", 2)
	if len(parts) < 2 {
		return fqdn, ""
	}
	return parts[0], parts[1]
}

// RelativeName returns the record name of fqdn inside zone, "@" for the zone
// apex. ok is false when fqdn does not belong to zone.
// e.g. ("home.example.com", "example.com") → ("home", true)
func RelativeName(fqdn, zone string) (name string, ok bool) {
	fqdn = strings.ToLower(strings.TrimSuffix(fqdn, "."))
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	if fqdn == zone {
		return "@", true
	}
	if zone == "" || !strings.HasSuffix(fqdn, "."+zone) {
		return "", false
	}
	return strings.TrimSuffix(fqdn, "."+zone), true
}

// RequiredSetting returns settings[key], failing when it is empty.
func RequiredSetting(provider string, settings map[string]string, key string) (string, error) {
	v := strings.TrimSpace(settings[key])
	if v == "" {
		return "", fmt.Errorf("%s: %w: missing required setting '%s'", provider, ErrInvalidSetting, key)
	}
	return v, nil
}

// TTLSetting parses the optional "ttl" setting, defaulting to DefaultTTL.
func TTLSetting(provider string, settings map[string]string) (int, error) {
	v := strings.TrimSpace(settings["ttl"])
	if v == "" {
		return DefaultTTL, nil
	}
	ttl, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: invalid ttl %q: %v", provider, ErrInvalidSetting, v, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("%s: %w: ttl must be positive, got %d", provider, ErrInvalidSetting, ttl)
	}
	return ttl, nil
}

// BoolSetting parses an optional boolean setting; empty means false.
func BoolSetting(provider string, settings map[string]string, key string) (bool, error) {
	v := strings.TrimSpace(settings[key])
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w: invalid %s %q", provider, ErrInvalidSetting, key, v)
	}
	return b, nil
}
