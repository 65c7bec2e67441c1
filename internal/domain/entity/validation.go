package entity

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
const maxURLLength = 2048

// methodPattern matches Slack Web API method names such as chat.postMessage.
var methodPattern = regexp.MustCompile(`^[a-z]+(\.[a-zA-Z]+)+$`)

// ValidateRule checks a rule before it is accepted into a rule store.
// Filter selectors are validated later by the filter evaluator, which
// reports them as ConfigurationError.
func ValidateRule(r Rule) error {
	if !r.Eligible() {
		return &ValidationError{Field: FieldTrigger, Message: "trigger is required"}
	}
	if r.Fields.WebhookURL != "" {
		if err := ValidateTarget(r.Fields.WebhookURL); err != nil {
			return err
		}
	}
	if r.Fields.Pretext == "" && r.Fields.Title == "" && r.Fields.Text == "" {
		return &ValidationError{Field: FieldText, Message: "at least one of pretext, title or text is required"}
	}
	return nil
}

// ValidateTarget validates a rule destination: either an absolute http(s)
// webhook URL or a Web API method name.
func ValidateTarget(target string) error {
	if target == "" {
		return &ValidationError{Field: FieldWebhookURL, Message: "destination is required"}
	}

	if !strings.Contains(target, "://") {
		if !methodPattern.MatchString(target) {
			return &ValidationError{Field: FieldWebhookURL, Message: "must be a URL or a Web API method name"}
		}
		return nil
	}

	// DoS protection: enforce maximum URL length
	if len(target) > maxURLLength {
		return &ValidationError{
			Field:   FieldWebhookURL,
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: FieldWebhookURL, Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: FieldWebhookURL, Message: "URL must have a valid host"}
	}

	// Literal private addresses are rejected; host names are resolved at send time.
	if ip := net.ParseIP(parsedURL.Hostname()); ip != nil && isPrivateIP(ip) {
		return &ValidationError{
			Field:   FieldWebhookURL,
			Message: "url cannot point to private network",
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is in a private or restricted range.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}

	privateIPv4Ranges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16", // includes cloud metadata
	}

	for _, cidr := range privateIPv4Ranges {
		_, subnet, _ := net.ParseCIDR(cidr)
		if subnet.Contains(ip) {
			return true
		}
	}

	return false
}
