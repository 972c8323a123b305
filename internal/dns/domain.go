package dns

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ParseDomainName validates name as an absolute domain name and returns it
// in lower case with a trailing dot.
func ParseDomainName(name string) (string, error) {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	if errs := validation.IsFullyQualifiedDomainName(field.NewPath("domain_name"), name); len(errs) > 0 {
		return "", fmt.Errorf("%w: %w: %s", ErrConfig, ErrDomainParse, errs.ToAggregate())
	}
	return Fqdn(name), nil
}

// Fqdn returns name with exactly one trailing dot.
func Fqdn(name string) string {
	return strings.TrimSuffix(name, ".") + "."
}

// SplitHostname splits an FQDN into subdomain and domain parts.
// e.g. "app.example.com" → ("app", "example.com")
// e.g. "sub.app.example.com" → ("sub.app", "example.com")
func SplitHostname(fqdn string) (hostname, domain string) {
	fqdn = strings.TrimSuffix(fqdn, ".")
	parts := strings.SplitN(fqdn, ".", 2)
	if len(parts) < 2 {
		return fqdn, ""
	}
	return parts[0], parts[1]
}

// WithinDomain reports whether name equals root or is a subdomain of it,
// ignoring case and trailing dots.
func WithinDomain(name, root string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	root = strings.ToLower(strings.TrimSuffix(root, "."))
	return name == root || strings.HasSuffix(name, "."+root)
}

// Qualify returns name in lower case without a trailing dot, with root
// appended when name is outside it.
func Qualify(name, root string) string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if WithinDomain(name, root) {
		return name
	}
	return name + "." + strings.ToLower(strings.TrimSuffix(root, "."))
}
