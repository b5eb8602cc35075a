package core

import (
	"strings"

	"github.com/animxo/mailpanel/internal/cpanel"
)

// QuotaBounds is an inclusive range of mailbox quotas in megabytes.
type QuotaBounds struct {
	Min, Max int
}

var (
	AdminQuota = QuotaBounds{Min: 1, Max: 10000}
	UserQuota  = QuotaBounds{Min: 1, Max: 50000}
)

func (b QuotaBounds) Check(quotaMB int) error {
	if quotaMB < b.Min || quotaMB > b.Max {
		return invalidf("quota must be between %d and %d MB", b.Min, b.Max)
	}
	return nil
}

// CheckDomain verifies address is local@domain with a non-empty local part
// and, unless domain is the wildcard, that it belongs to domain.
func CheckDomain(address, domain string) (local string, err error) {
	local, addrDomain, ok := strings.Cut(strings.TrimSpace(address), "@")
	if !ok || local == "" || addrDomain == "" || strings.Contains(addrDomain, "@") {
		return "", invalidf("invalid email address %q", address)
	}
	if domain != cpanel.Wildcard && !strings.EqualFold(addrDomain, domain) {
		return "", invalidf("Email must be for %s domain", domain)
	}
	return local, nil
}
