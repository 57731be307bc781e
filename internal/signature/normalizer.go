package signature

import "regexp"

// Message templating turns a free-text log message into a stable template by
// replacing high-entropy substrings with placeholders. Passes run in order
// over the already-transformed string; each detector owns a non-overlapping
// regex domain so ordering stays deterministic.
var templatePasses = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// RFC-4122-shaped UUIDs, case-insensitive.
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`), `{uuid}`},
	// Email addresses.
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), `{email}`},
	// IPv4 dotted quads.
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), `{ip}`},
	// Long hex tokens (session ids, hashes, trace ids).
	{regexp.MustCompile(`\b[0-9a-fA-F]{16,}\b`), `{hex}`},
	// Long decimal runs (database ids, timestamps).
	{regexp.MustCompile(`\b\d{6,}\b`), `{num}`},
	// Upload temp files keep their directory, lose the random token.
	{regexp.MustCompile(`(/(?:private/var/|var/)?tmp/)php[A-Za-z0-9]*`), `$1{upload}`},
	// Quoted absolute filesystem paths, optionally with a known extension.
	{regexp.MustCompile(`"(?:/[^/"]+)+(?:\.(?:php|go|js|ts|py|rb|java|json|ya?ml|ini|conf|txt|log|blade\.php))?"`), `"{path}"`},
	{regexp.MustCompile(`'(?:/[^/']+)+(?:\.(?:php|go|js|ts|py|rb|java|json|ya?ml|ini|conf|txt|log|blade\.php))?'`), `'{path}'`},
}

// Template rewrites message into its stable form. It is a pure function: the
// same input always yields the same template, and an empty message stays
// empty.
func Template(message string) string {
	if message == "" {
		return ""
	}
	out := message
	for _, pass := range templatePasses {
		out = pass.pattern.ReplaceAllString(out, pass.replacement)
	}
	return out
}
