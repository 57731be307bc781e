package signature

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logfold/logfold/internal/record"
)

var hexSignature = regexp.MustCompile(`^[0-9a-f]{64}$`)

func appFrame(line int) record.Frame {
	return record.Frame{
		File:     "/srv/app/app/Services/Billing.php",
		Line:     line,
		Function: "charge",
		Class:    `App\Services\Billing`,
		CallType: "->",
	}
}

func vendorFrame(line int) record.Frame {
	return record.Frame{
		File:     "/srv/app/vendor/laravel/framework/src/Illuminate/Routing/Router.php",
		Line:     line,
		Function: "dispatch",
		Class:    `Illuminate\Routing\Router`,
		CallType: "->",
	}
}

func exceptionRecord(ex *record.Exception, context map[string]any) *record.Record {
	if context == nil {
		context = map[string]any{}
	}
	context["exception"] = ex
	return &record.Record{
		Channel: "app",
		Level:   "error",
		Message: ex.Message,
		Context: context,
	}
}

func TestGenerateShape(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())
	sig := gen.Generate(&record.Record{Message: "boom"})
	assert.Regexp(t, hexSignature, sig)
}

func TestGenerateDeterministic(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())
	rec := exceptionRecord(&record.Exception{
		Type:    "RuntimeException",
		Message: "payment failed for order 1234567",
		Trace:   []record.Frame{appFrame(10), vendorFrame(20)},
	}, nil)

	first := gen.Generate(rec)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, gen.Generate(rec))
	}
}

func TestGenerateLineNumberInvariance(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	a := exceptionRecord(&record.Exception{
		Type:    "RuntimeException",
		Message: "payment failed",
		Trace:   []record.Frame{appFrame(42), vendorFrame(100)},
	}, nil)
	b := exceptionRecord(&record.Exception{
		Type:    "RuntimeException",
		Message: "payment failed",
		Trace:   []record.Frame{appFrame(97), vendorFrame(205)},
	}, nil)

	assert.Equal(t, gen.Generate(a), gen.Generate(b),
		"line numbers must not influence the signature")
}

func TestGenerateMessageTemplating(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	a := &record.Record{Channel: "app", Level: "error",
		Message: "User 550e8400-e29b-41d4-a716-446655440000 failed to login"}
	b := &record.Record{Channel: "app", Level: "error",
		Message: "User 123e4567-e89b-12d3-a456-426614174000 failed to login"}

	assert.Equal(t, gen.Generate(a), gen.Generate(b))

	c := &record.Record{Channel: "app", Level: "error", Message: "User locked out"}
	assert.NotEqual(t, gen.Generate(a), gen.Generate(c))
}

func TestGenerateContextSensitivity(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())
	ex := func() *record.Exception {
		return &record.Exception{
			Type:    "RuntimeException",
			Message: "boom",
			Trace:   []record.Frame{appFrame(10)},
		}
	}

	tests := []struct {
		name string
		a, b map[string]any
	}{
		{
			name: "different route",
			a:    map[string]any{"request": map[string]any{"route": map[string]any{"name": "users.show"}}},
			b:    map[string]any{"request": map[string]any{"route": map[string]any{"name": "users.edit"}}},
		},
		{
			name: "different method",
			a:    map[string]any{"request": map[string]any{"method": "GET", "route": map[string]any{"name": "users.show"}}},
			b:    map[string]any{"request": map[string]any{"method": "POST", "route": map[string]any{"name": "users.show"}}},
		},
		{
			name: "different job class",
			a:    map[string]any{"job": `App\Jobs\SyncUsers`},
			b:    map[string]any{"job": `App\Jobs\SendReports`},
		},
		{
			name: "different command",
			a:    map[string]any{"command": "reports:send"},
			b:    map[string]any{"command": "queue:work"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sigA := gen.Generate(exceptionRecord(ex(), tt.a))
			sigB := gen.Generate(exceptionRecord(ex(), tt.b))
			assert.NotEqual(t, sigA, sigB)
		})
	}
}

func TestGenerateContextInsensitivity(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())
	ex := func() *record.Exception {
		return &record.Exception{
			Type:    "RuntimeException",
			Message: "boom",
			Trace:   []record.Frame{appFrame(10)},
		}
	}

	a := exceptionRecord(ex(), map[string]any{
		"request":    map[string]any{"route": map[string]any{"name": "users.show"}},
		"request_id": "a2f9c3de",
		"user_id":    17,
	})
	b := exceptionRecord(ex(), map[string]any{
		"request":    map[string]any{"route": map[string]any{"name": "users.show"}},
		"request_id": "9b81aa02",
		"user_id":    1044,
	})

	assert.Equal(t, gen.Generate(a), gen.Generate(b),
		"incidental context fields must not influence the signature")
}

func TestGenerateVendorOnlyTraceFallback(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	a := exceptionRecord(&record.Exception{
		Type:    "PDOException",
		Message: "server has gone away",
		Trace:   []record.Frame{vendorFrame(100), vendorFrame(250)},
	}, nil)
	b := exceptionRecord(&record.Exception{
		Type:    "PDOException",
		Message: "server has gone away",
		Trace:   []record.Frame{vendorFrame(300), vendorFrame(975)},
	}, nil)

	sigA := gen.Generate(a)
	assert.Regexp(t, hexSignature, sigA)
	assert.Equal(t, sigA, gen.Generate(b),
		"all-vendor traces must anchor on the first frame, line numbers aside")
}

func TestGenerateDistinctExceptionTypes(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	a := exceptionRecord(&record.Exception{
		Type:    "RuntimeException",
		Message: "boom",
		Trace:   []record.Frame{appFrame(10)},
	}, nil)
	b := exceptionRecord(&record.Exception{
		Type:    "LogicException",
		Message: "boom",
		Trace:   []record.Frame{appFrame(10)},
	}, nil)

	assert.NotEqual(t, gen.Generate(a), gen.Generate(b),
		"exception type participates in payload identity")
}

func TestGenerateExceptionChain(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	base := func(prev *record.Exception) *record.Record {
		return exceptionRecord(&record.Exception{
			Type:     "RuntimeException",
			Message:  "wrapper",
			Previous: prev,
			Trace:    []record.Frame{appFrame(10)},
		}, nil)
	}

	plain := base(nil)
	caused := base(&record.Exception{Type: "PDOException", Message: "deadlock", Code: 40001})

	assert.NotEqual(t, gen.Generate(plain), gen.Generate(caused),
		"the cause chain participates in payload identity")

	// Chain summarization is bounded: links beyond the cap do not matter.
	deep := &record.Exception{Type: "E4", Message: "d4"}
	for _, typ := range []string{"E3", "E2", "E1"} {
		deep = &record.Exception{Type: typ, Previous: deep}
	}
	deeper := &record.Exception{Type: "E4", Message: "different tail"}
	for _, typ := range []string{"E3", "E2", "E1"} {
		deeper = &record.Exception{Type: typ, Previous: deeper}
	}
	assert.Equal(t, gen.Generate(base(deep)), gen.Generate(base(deeper)),
		"links beyond the chain depth cap must not influence the signature")
}

func TestGenerateCallerFrame(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	withCaller := &record.Record{
		Channel: "app",
		Level:   "warning",
		Message: "slow query",
		Extra: map[string]any{"caller": &record.Frame{
			File: "/srv/app/app/Repositories/UserRepository.php", Line: 51, Function: "find",
		}},
	}
	elsewhere := &record.Record{
		Channel: "app",
		Level:   "warning",
		Message: "slow query",
		Extra: map[string]any{"caller": &record.Frame{
			File: "/srv/app/app/Repositories/OrderRepository.php", Line: 51, Function: "find",
		}},
	}

	assert.NotEqual(t, gen.Generate(withCaller), gen.Generate(elsewhere),
		"caller frames anchor plain message records")

	// Same caller, different line: identical.
	sameOtherLine := &record.Record{
		Channel: "app",
		Level:   "warning",
		Message: "slow query",
		Extra: map[string]any{"caller": &record.Frame{
			File: "/srv/app/app/Repositories/UserRepository.php", Line: 260, Function: "find",
		}},
	}
	assert.Equal(t, gen.Generate(withCaller), gen.Generate(sameOtherLine))
}

func TestGenerateBasePathStripping(t *testing.T) {
	cfgA := DefaultGeneratorConfig()
	cfgA.BasePath = "/srv/app"
	cfgB := DefaultGeneratorConfig()
	cfgB.BasePath = "/deploy/releases/20260831"

	ex := func(root string) *record.Exception {
		return &record.Exception{
			Type:    "RuntimeException",
			Message: "boom",
			Trace: []record.Frame{{
				File: root + "/app/Services/Billing.php", Line: 10,
				Function: "charge", Class: `App\Services\Billing`, CallType: "->",
			}},
		}
	}

	sigA := NewGenerator(cfgA).Generate(exceptionRecord(ex("/srv/app"), nil))
	sigB := NewGenerator(cfgB).Generate(exceptionRecord(ex("/deploy/releases/20260831"), nil))
	assert.Equal(t, sigA, sigB, "deploy root must not influence the signature")
}

func TestGenerateMaxFramesCap(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorConfig())

	frames := func(tailLine int) []record.Frame {
		fs := make([]record.Frame, 0, 7)
		for i := 0; i < 6; i++ {
			f := appFrame(10 + i)
			f.Function = "step" + string(rune('A'+i))
			fs = append(fs, f)
		}
		// The seventh frame differs between the two records but sits past
		// the five-frame cap.
		extra := appFrame(tailLine)
		extra.Function = "beyondCap"
		extra.File = "/srv/app/app/Tail" + string(rune('0'+tailLine%10)) + ".php"
		return append(fs, extra)
	}

	a := exceptionRecord(&record.Exception{Type: "E", Message: "m", Trace: frames(1)}, nil)
	b := exceptionRecord(&record.Exception{Type: "E", Message: "m", Trace: frames(2)}, nil)
	assert.Equal(t, gen.Generate(a), gen.Generate(b))
}
