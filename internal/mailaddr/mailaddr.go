// Package mailaddr validates the report sender and recipient addresses.
package mailaddr

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	localPartRE     = regexp.MustCompile(`^[a-z0-9]([a-z0-9._+-]*[a-z0-9])?$`)
	validHostnameRE = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)
)

// Canonicalize parses and normalizes a plain address (no display name).
func Canonicalize(address string) (canonical string, localPart string, domain string, err error) {
	raw := strings.TrimSpace(address)
	if raw == "" {
		return "", "", "", fmt.Errorf("address is empty")
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return "", "", "", fmt.Errorf("address must not contain spaces")
	}
	raw = strings.ToLower(raw)

	parts := strings.Split(raw, "@")
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("invalid address: %q", address)
	}
	localPart = parts[0]
	domain = parts[1]
	if localPart == "" || domain == "" {
		return "", "", "", fmt.Errorf("invalid address: %q", address)
	}
	if !localPartRE.MatchString(localPart) {
		return "", "", "", fmt.Errorf("invalid local part: %q", localPart)
	}
	domain, err = CanonicalizeDomain(domain)
	if err != nil {
		return "", "", "", err
	}
	return localPart + "@" + domain, localPart, domain, nil
}

// CanonicalizeDomain lowercases, trims and validates a hostname-style domain.
func CanonicalizeDomain(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimSuffix(d, ".")

	if d == "" {
		return "", fmt.Errorf("domain is empty")
	}
	if strings.Contains(d, "://") {
		return "", fmt.Errorf("domain must not contain protocol: %q", domain)
	}
	if strings.Contains(d, "/") {
		return "", fmt.Errorf("domain must not contain path: %q", domain)
	}
	if !validHostnameRE.MatchString(d) {
		return "", fmt.Errorf("invalid domain: %q", domain)
	}
	return d, nil
}

// HostSender builds the <host>@<domain> sender the job uses when no explicit
// sender is configured. Only the first label of host is kept.
func HostSender(host, domain string) (string, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	canonical, _, _, err := Canonicalize(host + "@" + domain)
	return canonical, err
}

// Domain returns the domain part of address, or "" when it does not parse.
func Domain(address string) string {
	_, _, domain, err := Canonicalize(address)
	if err != nil {
		return ""
	}
	return domain
}
