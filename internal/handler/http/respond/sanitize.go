package respond

import (
	"regexp"

	"slack-bridge/internal/infra/slack"
)

var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	// bot, user, app-level and legacy workspace tokens
	{regexp.MustCompile(`xox[abposr]-[A-Za-z0-9-]+|xapp-[A-Za-z0-9-]+`), "xox*-****"},
	// DSN passwords
	{regexp.MustCompile(`://([^:/@]+):([^@]+)@`), "://$1:****@"},
	// bearer tokens echoed by HTTP clients
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`), "${1}****"},
}

// SanitizeError returns err's message with secrets masked. Slack webhook
// paths are redacted by slack.Redact.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := slack.Redact(err.Error())
	for _, p := range secretPatterns {
		msg = p.re.ReplaceAllString(msg, p.repl)
	}
	return msg
}
