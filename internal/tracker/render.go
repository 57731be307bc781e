package tracker

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/logfold/logfold/internal/record"
)

// markerPrefix introduces the hidden signature comment embedded in issue
// bodies. FindIssue searches for the full marker, so its exact text is part
// of the dedup contract with previously-filed issues.
const markerPrefix = "logfold-signature:"

// Marker renders the hidden signature marker for an issue body.
func Marker(signature string) string {
	return fmt.Sprintf("<!-- %s %s -->", markerPrefix, signature)
}

const maxTitleLen = 100

// IssueTitle derives an issue title from the record: severity, channel, and
// the first line of the message, truncated to a readable length.
func IssueTitle(rec *record.Record) string {
	msg := rec.Message
	if ex := rec.Exception(); ex != nil && ex.Message != "" {
		msg = ex.Message
		if ex.Type != "" {
			msg = ex.Type + ": " + ex.Message
		}
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > maxTitleLen {
		msg = msg[:maxTitleLen-1] + "…"
	}
	if msg == "" {
		msg = "(no message)"
	}

	level := strings.ToUpper(rec.Level)
	if level == "" {
		level = "ERROR"
	}
	if rec.Channel != "" {
		return fmt.Sprintf("[%s] %s: %s", level, rec.Channel, msg)
	}
	return fmt.Sprintf("[%s] %s", level, msg)
}

var bodyTemplate = template.Must(template.New("issue").Parse(`{{.Marker}}
**Level:** {{.Level}}
**Channel:** {{.Channel}}
{{- if .Time}}
**Time:** {{.Time}}
{{- end}}

### Message

` + "```" + `
{{.Message}}
` + "```" + `
{{- if .Exception}}

### Exception

**{{.Exception.Type}}**{{if .Exception.Code}} (code {{.Exception.Code}}){{end}}: {{.Exception.Message}}
{{- if .Trace}}

` + "```" + `
{{.Trace}}
` + "```" + `
{{- end}}
{{- end}}
{{- if .Context}}

### Context

` + "```json" + `
{{.Context}}
` + "```" + `
{{- end}}

<sub>Signature: ` + "`{{.Signature}}`" + `</sub>
`))

type bodyData struct {
	Marker    string
	Level     string
	Channel   string
	Time      string
	Message   string
	Exception *record.Exception
	Trace     string
	Context   string
	Signature string
}

// IssueBody renders the Markdown body for a new issue, embedding the
// signature marker.
func IssueBody(rec *record.Record, signature string) string {
	data := bodyData{
		Marker:    Marker(signature),
		Level:     strings.ToUpper(rec.Level),
		Channel:   rec.Channel,
		Message:   rec.Message,
		Signature: signature,
	}
	if data.Level == "" {
		data.Level = "ERROR"
	}
	if data.Channel == "" {
		data.Channel = "-"
	}
	if !rec.Time.IsZero() {
		data.Time = rec.Time.UTC().Format("2006-01-02 15:04:05 MST")
	}
	if ex := rec.Exception(); ex != nil {
		data.Exception = ex
		data.Trace = renderTrace(ex)
	}
	if ctx := contextWithoutException(rec); len(ctx) > 0 {
		if encoded, err := json.MarshalIndent(ctx, "", "  "); err == nil {
			data.Context = string(encoded)
		}
	}

	var sb strings.Builder
	// The template only fails on unrenderable values, which bodyData cannot
	// hold.
	_ = bodyTemplate.Execute(&sb, data)
	return sb.String()
}

// CommentBody renders the body for a repeat-occurrence comment.
func CommentBody(rec *record.Record, signature string) string {
	var sb strings.Builder
	sb.WriteString(Marker(signature))
	sb.WriteString("\nAnother occurrence")
	if !rec.Time.IsZero() {
		fmt.Fprintf(&sb, " at %s", rec.Time.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	sb.WriteString(":\n\n```\n")
	sb.WriteString(rec.Message)
	sb.WriteString("\n```\n")
	return sb.String()
}

func renderTrace(ex *record.Exception) string {
	var sb strings.Builder
	for i, f := range ex.Trace {
		fmt.Fprintf(&sb, "#%d %s(%d): %s\n", i, f.File, f.Line, f.Qualified())
	}
	return strings.TrimRight(sb.String(), "\n")
}

// contextWithoutException copies the record context minus the exception
// object, which the body already renders on its own.
func contextWithoutException(rec *record.Record) map[string]any {
	if len(rec.Context) == 0 {
		return nil
	}
	out := make(map[string]any, len(rec.Context))
	for k, v := range rec.Context {
		if k == "exception" {
			continue
		}
		out[k] = v
	}
	return out
}
