// Package validation checks values before they are persisted to a store.
//
// Stored values outlive the command that wrote them, so a bad base URL or a
// header carrying a line break would otherwise surface on every later
// request instead of at the point of entry.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxURLLength bounds stored base URLs.
const MaxURLLength = 2048

// metadataHosts are cloud instance metadata endpoints. A session base URL
// pointing at one would attach the account token to every request sent
// there.
var metadataHosts = []string{
	"169.254.169.254",
	"metadata.google.internal",
	"instance-data",
	"fd00:ec2::254",
}

// ValidateBaseURL checks a session base URL. It must be an absolute http or
// https URL with a host. Query strings and fragments are rejected since
// relative paths are appended to the base.
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("base URL must be at most %d characters (got %d)", MaxURLLength, len(rawURL))
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid base URL scheme: only http and https are allowed, got %q", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("invalid base URL: must contain a hostname")
	}
	if isCloudMetadata(hostname) {
		return fmt.Errorf("invalid base URL: cloud metadata endpoints are not allowed")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("invalid base URL: must not contain a query or fragment")
	}
	return nil
}

func isCloudMetadata(hostname string) bool {
	lowercase := strings.ToLower(hostname)
	for _, host := range metadataHosts {
		if lowercase == host {
			return true
		}
	}
	return strings.HasSuffix(lowercase, ".metadata.google.internal")
}
