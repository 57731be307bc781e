package signature

import (
	"strings"

	"github.com/logfold/logfold/internal/record"
)

// Kind is the coarse execution-context classification of a record. It scopes
// which context fields are stable enough to participate in a signature.
type Kind string

const (
	KindHTTP    Kind = "http"
	KindJob     Kind = "job"
	KindCommand Kind = "command"
	KindOther   Kind = "other"
)

// ExtractContext classifies the record's execution kind and pulls out the
// small stable data subset for that kind. Detection priority is http, then
// job, then command, then other: an HTTP execution context is the most
// diagnostically specific signal when several markers are present.
//
// Only non-empty string fields are included; absent fields are omitted from
// the result entirely so they never perturb the hash.
func ExtractContext(rec *record.Record) (Kind, map[string]string) {
	if data, ok := extractHTTP(rec); ok {
		return KindHTTP, data
	}
	if data, ok := extractJob(rec); ok {
		return KindJob, data
	}
	if data, ok := extractCommand(rec); ok {
		return KindCommand, data
	}
	return KindOther, extractOther(rec)
}

// extractHTTP matches when a route descriptor or an explicit HTTP method is
// present under either the request-scoped or the top-level conventional keys.
func extractHTTP(rec *record.Record) (map[string]string, bool) {
	route, hasRoute := record.At(rec.Context, "request.route")
	if !hasRoute {
		route, hasRoute = record.At(rec.Context, "route")
	}
	method, hasMethod := record.StringAt(rec.Context, "request.method")
	if !hasMethod {
		method, hasMethod = record.StringAt(rec.Context, "method")
	}
	if !hasRoute && !hasMethod {
		return nil, false
	}

	data := map[string]string{}
	if hasMethod {
		data["method"] = strings.ToUpper(method)
	}
	if hasRoute {
		switch r := route.(type) {
		case string:
			if r != "" {
				data["route"] = r
			}
		case map[string]any:
			// A route name survives renames of the URI template, so it wins
			// over the template when both are present.
			if name, ok := record.StringAt(r, "name"); ok {
				data["route"] = name
			} else if uri, ok := record.StringAt(r, "uri"); ok {
				data["route"] = uri
			}
			if controller, ok := record.StringAt(r, "controller"); ok {
				// Keep the class portion only; the @action suffix repeats
				// information the route already carries.
				if at := strings.Index(controller, "@"); at >= 0 {
					controller = controller[:at]
				}
				if controller != "" {
					data["controller"] = controller
				}
			}
		}
	}
	return data, true
}

func extractJob(rec *record.Record) (map[string]string, bool) {
	job, ok := record.StringAt(rec.Context, "job")
	if !ok {
		job, ok = record.StringAt(rec.Context, "job.class")
	}
	if !ok {
		return nil, false
	}
	data := map[string]string{"job": job}
	if queue, ok := record.StringAt(rec.Context, "queue"); ok {
		data["queue"] = queue
	} else if queue, ok := record.StringAt(rec.Context, "job.queue"); ok {
		data["queue"] = queue
	}
	return data, true
}

func extractCommand(rec *record.Record) (map[string]string, bool) {
	command, ok := record.StringAt(rec.Context, "command")
	if !ok {
		command, ok = record.StringAt(rec.Context, "command.name")
	}
	if !ok {
		return nil, false
	}
	return map[string]string{"command": command}, true
}

// extractOther always records the channel. The level is included only for
// plain message records: with an exception attached the level restates the
// exception identity, and omitting it groups severity misclassifications of
// the same root cause together.
func extractOther(rec *record.Record) map[string]string {
	data := map[string]string{}
	if rec.Channel != "" {
		data["channel"] = rec.Channel
	}
	if rec.Exception() == nil && rec.Level != "" {
		data["level"] = rec.Level
	}
	return data
}
