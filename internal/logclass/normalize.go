// internal/logclass/normalize.go
package logclass

import (
	"regexp"
	"strings"
)

var (
	// "Dec 11 06:27:59 hostname "
	syslogPrefixRe = regexp.MustCompile(`^[A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\S+\s+`)
	// "sshd[1234]: " or "kernel: "
	processTokenRe = regexp.MustCompile(`^[A-Za-z0-9_\-./]+(?:\[\d+\])?:\s*`)
	ipv4Re         = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	numberRe       = regexp.MustCompile(`\b\d+\b`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// Normalizer turns a raw syslog line into classifier text
type Normalizer struct {
	RemoveNumbers bool
}

// Normalize strips the syslog prefix, a leading process token and IPv4
// addresses, then lowercases and collapses whitespace. Passes repeat until
// the text stops changing (every pass either shortens it or only changes
// case), so Normalize(Normalize(s)) == Normalize(s).
func (n Normalizer) Normalize(line string) string {
	for {
		next := n.pass(line)
		if next == line {
			return line
		}
		line = next
	}
}

func (n Normalizer) pass(line string) string {
	line = syslogPrefixRe.ReplaceAllString(line, "")
	line = processTokenRe.ReplaceAllString(line, "")
	line = ipv4Re.ReplaceAllString(line, " ")
	if n.RemoveNumbers {
		line = numberRe.ReplaceAllString(line, " ")
	}
	line = strings.ToLower(line)
	return strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
}

// Clean normalizes with numbers kept, as used by the classifier
func Clean(line string) string {
	return Normalizer{}.Normalize(line)
}
