// Package providers imports all DNS provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/ddnsd/internal/dns/cloudflare"
	_ "github.com/yuriy-kovalchuk/ddnsd/internal/dns/digitalocean"
	_ "github.com/yuriy-kovalchuk/ddnsd/internal/dns/opnsense"
	_ "github.com/yuriy-kovalchuk/ddnsd/internal/dns/route53"
)
