package validate

import "strings"

// Check scans the literal snippet text against the policy. The first match
// short-circuits; the triggering pattern is returned as the reason. Check
// runs strictly before limits are installed or any code executes.
func (p Policy) Check(snippet string) Verdict {
	lower := strings.ToLower(snippet)
	for _, pattern := range p.Substrings {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return Verdict{Allowed: false, Pattern: pattern}
		}
	}
	for _, re := range p.Regexps {
		if loc := re.FindString(snippet); loc != "" {
			return Verdict{Allowed: false, Pattern: loc}
		}
	}
	return Verdict{Allowed: true}
}
