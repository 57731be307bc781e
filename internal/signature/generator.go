package signature

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/logfold/logfold/internal/record"
)

// payloadVersion is bumped whenever the hashing rules change, so historical
// and new signatures never merge silently.
const payloadVersion = 2

const (
	defaultMaxFrames     = 5
	defaultMaxChainDepth = 3
)

// GeneratorConfig controls signature generation.
type GeneratorConfig struct {
	// MaxFrames caps how many in-app frames participate in an exception
	// signature. Default 5.
	MaxFrames int
	// MaxChainDepth caps how many "previous" links of the exception chain
	// are summarized. Default 3.
	MaxChainDepth int
	// BasePath is the application root stripped from frame file paths so
	// signatures survive deploys into different directories.
	BasePath string
	// Classifier configures first-party vs vendor frame detection.
	Classifier ClassifierConfig
}

// DefaultGeneratorConfig returns the default generation settings.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxFrames:     defaultMaxFrames,
		MaxChainDepth: defaultMaxChainDepth,
		Classifier:    DefaultClassifierConfig(),
	}
}

// Generator produces deterministic fingerprints for log records. Two records
// a human would consider the same problem hash identically; records for
// distinct problems hash differently with high probability.
//
// Generate is a pure function of record content: it never consults the clock
// and never fails. Missing or oddly-shaped fields shrink the payload, they
// never abort it.
type Generator struct {
	maxFrames  int
	maxChain   int
	basePath   string
	classifier *Classifier
}

// NewGenerator builds a Generator from cfg, applying defaults to zero fields.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = defaultMaxFrames
	}
	if cfg.MaxChainDepth <= 0 {
		cfg.MaxChainDepth = defaultMaxChainDepth
	}
	return &Generator{
		maxFrames:  cfg.MaxFrames,
		maxChain:   cfg.MaxChainDepth,
		basePath:   cfg.BasePath,
		classifier: NewClassifier(cfg.Classifier),
	}
}

// payload is the canonical structure that gets hashed. Field order is fixed
// by declaration; the context map is key-sorted by encoding/json.
type payload struct {
	Version int               `json:"v"`
	Kind    Kind              `json:"kind"`
	Context map[string]string `json:"context,omitempty"`
	Origin  origin            `json:"origin"`
	Variant variant           `json:"variant"`
}

type origin struct {
	// Frames and Culprit anchor exception records.
	Frames  []frameSignature `json:"frames,omitempty"`
	Chain   []chainLink      `json:"chain,omitempty"`
	Culprit *frameSignature  `json:"culprit,omitempty"`
	// Caller anchors plain message records when the collector captured one.
	Caller *frameSignature `json:"caller,omitempty"`
}

// frameSignature is the hash-stable reduction of a stack frame. It carries no
// line number: line numbers shift with unrelated edits and would splinter
// groups.
type frameSignature struct {
	File string `json:"file"`
	Func string `json:"func"`
}

type chainLink struct {
	Type    string `json:"exception_type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type variant struct {
	MsgTpl string `json:"msg_tpl"`
}

// Generate returns the record's signature as 64 lowercase hex characters
// (SHA-256 of the canonical payload JSON).
func (g *Generator) Generate(rec *record.Record) string {
	kind, data := ExtractContext(rec)
	p := payload{
		Version: payloadVersion,
		Kind:    kind,
	}
	if len(data) > 0 {
		p.Context = data
	}

	if ex := rec.Exception(); ex != nil {
		p.Origin = g.exceptionOrigin(ex)
		p.Variant = variant{MsgTpl: Template(ex.Message)}
	} else {
		if caller := rec.Caller(); caller != nil {
			sig := g.frameSignature(*caller)
			p.Origin.Caller = &sig
		}
		p.Variant = variant{MsgTpl: Template(rec.Message)}
	}

	return hashPayload(p)
}

// exceptionOrigin collects up to maxFrames in-app frames (innermost first)
// plus the chain summary. When the whole trace is vendor code the first trace
// frame is used regardless, so exceptions thrown entirely inside dependencies
// still get a stable anchor.
func (g *Generator) exceptionOrigin(ex *record.Exception) origin {
	var frames []frameSignature
	for _, f := range ex.Trace {
		if g.classifier.IsVendorFrame(f) {
			continue
		}
		frames = append(frames, g.frameSignature(f))
		if len(frames) >= g.maxFrames {
			break
		}
	}
	if len(frames) == 0 && len(ex.Trace) > 0 {
		frames = append(frames, g.frameSignature(ex.Trace[0]))
	}

	o := origin{Frames: frames, Chain: g.chainSummary(ex)}
	if len(frames) > 0 {
		o.Culprit = &frames[0]
	}
	return o
}

// chainSummary records the exception itself, then up to maxChain previous
// links. Including the thrown type first makes the exception type part of the
// payload identity even for chains of length one.
func (g *Generator) chainSummary(ex *record.Exception) []chainLink {
	chain := []chainLink{{Type: ex.Type, Code: ex.Code, Message: Template(ex.Message)}}
	prev := ex.Previous
	for depth := 0; prev != nil && depth < g.maxChain; depth++ {
		chain = append(chain, chainLink{Type: prev.Type, Code: prev.Code, Message: Template(prev.Message)})
		prev = prev.Previous
	}
	return chain
}

func (g *Generator) frameSignature(f record.Frame) frameSignature {
	return frameSignature{
		File: g.relativePath(f.File),
		Func: f.Qualified(),
	}
}

// relativePath strips the configured application root so the same code
// deployed to different directories keeps the same signature.
func (g *Generator) relativePath(file string) string {
	if g.basePath != "" {
		file = strings.TrimPrefix(file, strings.TrimSuffix(g.basePath, "/"))
	}
	return strings.TrimPrefix(file, "/")
}

// hashPayload serializes the payload to canonical JSON (stable key order, no
// HTML escaping of slashes) and returns the SHA-256 digest as lowercase hex.
func hashPayload(p payload) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode cannot fail here: the payload holds only strings, ints, and
	// maps of strings.
	_ = enc.Encode(p)
	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:])
}
