package security

import "strings"

// injectionFragments are lowercase substrings that commonly appear in
// SQL-injection, script-injection, and path-traversal probes.
var injectionFragments = []string{
	"union select",
	"' or ",
	"\" or ",
	"1=1",
	"; drop ",
	"<script",
	"javascript:",
	"onerror=",
	"../",
	"..%2f",
	"%3cscript",
	"etc/passwd",
}

// Classify reports whether the given request fragment (typically a URL path
// plus query string) looks like an injection or traversal probe.
//
// The result is advisory only — a heuristic tag for the event log, never a
// blocking decision. False positives and negatives are acceptable.
func Classify(fragment string) bool {
	s := strings.ToLower(fragment)
	for _, frag := range injectionFragments {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
