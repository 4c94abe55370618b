package providers

import (
	"testing"

	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

func TestAllProvidersRegistered(t *testing.T) {
	registered := map[string]bool{}
	for _, name := range dns.Registered() {
		registered[name] = true
	}
	for _, want := range []string{"aws", "route53", "cloudflare", "digitalocean", "opnsense"} {
		if !registered[want] {
			t.Errorf("expected provider %q to be registered, got %v", want, dns.Registered())
		}
	}
}
