// internal/logclass/rules.go
package logclass

import "regexp"

// securityPatterns are unambiguous security signatures matched against the
// raw line, in order
var securityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)failed password`),
	regexp.MustCompile(`(?i)authentication failure`),
	regexp.MustCompile(`(?i)connection reset by .*preauth`),
	regexp.MustCompile(`(?i)password check failed`),
	regexp.MustCompile(`(?i)failed to authenticate`),
	regexp.MustCompile(`(?i)invalid user`),
}

// MatchSecurity reports whether raw hits a security rule and which one
func MatchSecurity(raw string) (string, bool) {
	for _, p := range securityPatterns {
		if p.MatchString(raw) {
			return p.String(), true
		}
	}
	return "", false
}
