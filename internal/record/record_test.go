package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAt(t *testing.T) {
	m := map[string]any{
		"request": map[string]any{
			"method": "GET",
			"route":  map[string]any{"name": "users.show"},
		},
		"empty": "",
		"count": float64(3),
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"request.method", "GET", true},
		{"request.route.name", "users.show", true},
		{"request.missing", nil, false},
		{"request.method.deeper", nil, false},
		{"missing", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		got, ok := At(m, tt.path)
		assert.Equal(t, tt.wantOK, ok, "path %q", tt.path)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "path %q", tt.path)
		}
	}

	// StringAt treats empty strings as absent.
	_, ok := StringAt(m, "empty")
	assert.False(t, ok)
	_, ok = StringAt(m, "count")
	assert.False(t, ok)

	n, ok := IntAt(m, "count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestExceptionFrom(t *testing.T) {
	native := &Exception{Type: "RuntimeException"}
	assert.Same(t, native, ExceptionFrom(native))
	assert.Nil(t, ExceptionFrom(nil))
	assert.Nil(t, ExceptionFrom("not an exception"))

	decoded := ExceptionFrom(map[string]any{
		"class":   "PDOException",
		"message": "deadlock detected",
		"code":    float64(40001),
		"previous": map[string]any{
			"class":   "RuntimeException",
			"message": "root cause",
		},
		"trace": []any{
			map[string]any{
				"file":     "/srv/app/app/Repo.php",
				"line":     float64(10),
				"function": "find",
				"class":    `App\Repo`,
				"type":     "->",
			},
			"garbage entry",
		},
	})
	require.NotNil(t, decoded)
	assert.Equal(t, "PDOException", decoded.Type)
	assert.Equal(t, "deadlock detected", decoded.Message)
	assert.Equal(t, 40001, decoded.Code)
	require.NotNil(t, decoded.Previous)
	assert.Equal(t, "RuntimeException", decoded.Previous.Type)
	require.Len(t, decoded.Trace, 1)
	assert.Equal(t, Frame{File: "/srv/app/app/Repo.php", Line: 10, Function: "find", Class: `App\Repo`, CallType: "->"}, decoded.Trace[0])
}

func TestFrameQualified(t *testing.T) {
	tests := []struct {
		frame Frame
		want  string
	}{
		{Frame{Function: "array_map"}, "array_map"},
		{Frame{Class: `App\Repo`, Function: "find", CallType: "->"}, `App\Repo->find`},
		{Frame{Class: `App\Repo`, Function: "boot", CallType: "::"}, `App\Repo::boot`},
		{Frame{Class: `App\Repo`, Function: "boot"}, `App\Repo::boot`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.frame.Qualified())
	}
}

func TestRecordAccessors(t *testing.T) {
	rec := &Record{
		Context: map[string]any{"exception": &Exception{Type: "E"}},
		Extra:   map[string]any{"caller": &Frame{File: "/srv/app/app/X.php", Function: "run"}},
	}
	require.NotNil(t, rec.Exception())
	assert.Equal(t, "E", rec.Exception().Type)
	require.NotNil(t, rec.Caller())
	assert.Equal(t, "run", rec.Caller().Function)

	empty := &Record{}
	assert.Nil(t, empty.Exception())
	assert.Nil(t, empty.Caller())
}

func TestParserParse(t *testing.T) {
	p := NewParser()

	line := `{
		"time": "2026-08-30T12:00:00Z",
		"channel": "app",
		"level": "error",
		"message": "boom",
		"context": {
			"request": {"method": "GET", "route": {"name": "users.show"}},
			"exception": {
				"class": "RuntimeException",
				"message": "boom",
				"trace": [{"file": "/srv/app/app/X.php", "line": 10, "function": "run"}]
			}
		},
		"extra": {"caller": {"file": "/srv/app/app/Y.php", "line": 4, "function": "log"}}
	}`

	rec, err := p.Parse([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, "app", rec.Channel)
	assert.Equal(t, "error", rec.Level)
	assert.Equal(t, "boom", rec.Message)
	assert.Equal(t, 2026, rec.Time.Year())

	method, ok := StringAt(rec.Context, "request.method")
	require.True(t, ok)
	assert.Equal(t, "GET", method)

	ex := rec.Exception()
	require.NotNil(t, ex)
	assert.Equal(t, "RuntimeException", ex.Type)
	require.Len(t, ex.Trace, 1)
	assert.Equal(t, 10, ex.Trace[0].Line)

	caller := rec.Caller()
	require.NotNil(t, caller)
	assert.Equal(t, "log", caller.Function)
}

func TestParserParseMinimal(t *testing.T) {
	p := NewParser()
	rec, err := p.Parse([]byte(`{"message": "hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Message)
	assert.Nil(t, rec.Context)
	assert.True(t, rec.Time.IsZero())
}

func TestParserParseErrors(t *testing.T) {
	p := NewParser()
	_, err := p.Parse([]byte(`{not json`))
	assert.Error(t, err)
	_, err = p.Parse([]byte(`[1, 2, 3]`))
	assert.Error(t, err)
}
