package record

// Exception is the normalized view of an exception-like object attached to a
// record. Trace frames are ordered innermost-first, matching how runtimes
// report backtraces.
type Exception struct {
	// Type is the fully-qualified exception class or error type name.
	Type string `json:"class"`
	// Message is the raw (un-templated) exception message.
	Message string `json:"message"`
	// Code is the numeric error code, zero when the runtime has none.
	Code int `json:"code"`
	// Previous links to the causing exception, nil at the end of the chain.
	Previous *Exception `json:"previous,omitempty"`
	// Trace holds the backtrace frames, innermost first.
	Trace []Frame `json:"trace,omitempty"`
}

// Frame is a single stack frame. Line is carried for rendering but is never
// part of a signature.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
	Class    string `json:"class,omitempty"`
	// CallType is the invocation operator between class and function
	// ("->" for instance calls, "::" for static calls), empty for plain
	// functions.
	CallType string `json:"type,omitempty"`
}

// Qualified returns the frame's qualified callable name, e.g.
// "App\Jobs\SyncJob::handle" or "array_map" for a bare function.
func (f Frame) Qualified() string {
	if f.Class == "" {
		return f.Function
	}
	sep := f.CallType
	if sep == "" {
		sep = "::"
	}
	return f.Class + sep + f.Function
}

// ExceptionFrom coerces a context value into an *Exception. It accepts a
// native *Exception, an Exception value, or the map shape produced by JSON
// decoding. Anything else yields nil.
func ExceptionFrom(v any) *Exception {
	switch ex := v.(type) {
	case nil:
		return nil
	case *Exception:
		return ex
	case Exception:
		return &ex
	case map[string]any:
		return exceptionFromMap(ex)
	}
	return nil
}

// FrameFrom coerces a context value into a *Frame, accepting native frames
// and decoded-JSON maps.
func FrameFrom(v any) *Frame {
	switch f := v.(type) {
	case nil:
		return nil
	case *Frame:
		return f
	case Frame:
		return &f
	case map[string]any:
		fr := frameFromMap(f)
		return &fr
	}
	return nil
}

func exceptionFromMap(m map[string]any) *Exception {
	ex := &Exception{}
	ex.Type, _ = StringAt(m, "class")
	if ex.Type == "" {
		// some producers use "type" instead of "class"
		ex.Type, _ = StringAt(m, "type")
	}
	ex.Message, _ = StringAt(m, "message")
	ex.Code, _ = IntAt(m, "code")
	if prev, ok := MapAt(m, "previous"); ok {
		ex.Previous = exceptionFromMap(prev)
	}
	if raw, ok := m["trace"]; ok {
		if frames, ok := raw.([]any); ok {
			for _, fv := range frames {
				fm, ok := fv.(map[string]any)
				if !ok {
					continue
				}
				ex.Trace = append(ex.Trace, frameFromMap(fm))
			}
		}
	}
	return ex
}

func frameFromMap(m map[string]any) Frame {
	f := Frame{}
	f.File, _ = StringAt(m, "file")
	f.Line, _ = IntAt(m, "line")
	f.Function, _ = StringAt(m, "function")
	f.Class, _ = StringAt(m, "class")
	f.CallType, _ = StringAt(m, "type")
	return f
}
