package signature

import (
	"strings"

	"github.com/logfold/logfold/internal/record"
)

// mainMarker is the synthetic top-level frame some runtimes append to a
// backtrace in place of a real entry function.
const mainMarker = "{main}"

// ClassifierConfig controls how stack frames are split into first-party
// ("in-app") and vendor code. All matching is plain substring/suffix matching
// on file paths and qualified callable names.
type ClassifierConfig struct {
	// VendorSegments are directory segments that mark a frame as third-party.
	VendorSegments []string
	// ShimFiles are framework dispatch shims living under a vendor segment
	// that are transparent for attribution: when the invoked callee is
	// first-party, the shim frame is treated as first-party too.
	ShimFiles []string
	// AppPrefixes are qualified-name prefixes considered first-party code.
	AppPrefixes []string
	// EntrypointFiles are CLI bootstrap entrypoints, always vendor.
	EntrypointFiles []string
}

// DefaultClassifierConfig returns the defaults used when no application
// layout is configured.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		VendorSegments:  []string{"/vendor/", "/node_modules/"},
		ShimFiles:       []string{"/Container/BoundMethod.php"},
		AppPrefixes:     []string{`App\`},
		EntrypointFiles: []string{"artisan"},
	}
}

// Classifier decides whether a stack frame belongs to vendored, runtime, or
// bootstrap code. A frame with no file path is never vendor: with no evidence
// of vendor-ness the classifier fails open toward inclusion.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier builds a Classifier. Zero-valued config fields fall back to
// the defaults, so a partially-populated config only overrides what it sets.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	def := DefaultClassifierConfig()
	if cfg.VendorSegments == nil {
		cfg.VendorSegments = def.VendorSegments
	}
	if cfg.ShimFiles == nil {
		cfg.ShimFiles = def.ShimFiles
	}
	if cfg.AppPrefixes == nil {
		cfg.AppPrefixes = def.AppPrefixes
	}
	if cfg.EntrypointFiles == nil {
		cfg.EntrypointFiles = def.EntrypointFiles
	}
	return &Classifier{cfg: cfg}
}

// IsVendorFrame reports whether the frame belongs to vendor, runtime, or
// bootstrap code rather than to the application.
func (c *Classifier) IsVendorFrame(f record.Frame) bool {
	if f.Function == mainMarker {
		return true
	}
	if f.File == "" {
		return false
	}
	if c.isEntrypoint(f.File) {
		return true
	}
	if c.hasVendorSegment(f.File) {
		// Dispatch shims are transparent: the frame is attributed to the
		// first-party callee it invokes.
		if c.isShim(f.File) && c.isFirstParty(f.Qualified()) {
			return false
		}
		return true
	}
	return false
}

// IsVendorLine applies the same rules to a rendered backtrace line of the
// form "#3 /path/file.php(36): Class->method()" or "#12 {main}".
func (c *Classifier) IsVendorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasSuffix(trimmed, mainMarker) {
		return true
	}

	path := trimmed
	target := ""
	if i := strings.Index(trimmed, "("); i >= 0 {
		path = trimmed[:i]
		if j := strings.Index(trimmed, "): "); j >= 0 {
			target = trimmed[j+len("): "):]
		}
	}
	// Strip the "#N " frame index prefix.
	if i := strings.IndexByte(path, ' '); i >= 0 {
		path = path[i+1:]
	}

	if c.isEntrypoint(path) {
		return true
	}
	if c.hasVendorSegment(path) {
		if c.isShim(path) && c.isFirstParty(target) {
			return false
		}
		return true
	}
	return false
}

func (c *Classifier) hasVendorSegment(file string) bool {
	for _, seg := range c.cfg.VendorSegments {
		if strings.Contains(file, seg) {
			return true
		}
	}
	return false
}

func (c *Classifier) isShim(file string) bool {
	for _, shim := range c.cfg.ShimFiles {
		if strings.Contains(file, shim) {
			return true
		}
	}
	return false
}

func (c *Classifier) isFirstParty(qualified string) bool {
	for _, prefix := range c.cfg.AppPrefixes {
		if strings.HasPrefix(qualified, prefix) {
			return true
		}
	}
	return false
}

func (c *Classifier) isEntrypoint(file string) bool {
	for _, entry := range c.cfg.EntrypointFiles {
		if file == entry || strings.HasSuffix(file, "/"+entry) {
			return true
		}
	}
	return false
}
