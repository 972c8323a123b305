// Package providers imports all DNS provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns/cloudflare"
	_ "github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns/opnsense"
	_ "github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns/route53"
)
