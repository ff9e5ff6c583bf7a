package runtime

import (
	"fmt"
	"strings"

	"github.com/entitycache/graphwire/wire/core"
)

// Response is the envelope returned to command callers:
// {success, message|warning|error, data}.
type Response struct {
	Success bool
	Message string
	Warning string
	Error   string
	Data    any
}

// Success reports a completed operation.
func Success(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Warning reports an operation that completed with reduced fidelity.
func Warning(warning string, data any) Response {
	return Response{Success: true, Warning: warning, Data: data}
}

// Failure reports an operation that did not complete.
func Failure(err error) Response {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Response{Success: false, Error: msg}
}

// FromResult wraps a serialization result. Degraded results still succeed
// but carry a warning naming what was lost; only error envelopes fail.
func FromResult(res core.Result) Response {
	if res.Status == core.StatusError {
		return Response{Success: false, Error: res.Error, Data: res.Wire()}
	}
	if !res.Degraded() {
		return Success(fmt.Sprintf("serialized %s", res.TypeName), res.Wire())
	}

	var parts []string
	if len(res.Failed) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed member(s): %s",
			len(res.Failed), strings.Join(res.FailedMembers(), ", ")))
	}
	if res.Truncated {
		parts = append(parts, "output truncated by budget")
	}
	return Warning(fmt.Sprintf("serialized %s with %s", res.TypeName, strings.Join(parts, "; ")), res.Wire())
}

// Wire renders the envelope with a fixed member order.
func (r Response) Wire() *core.Object {
	out := core.NewObject(3).Set("success", r.Success)
	switch {
	case r.Error != "":
		out.Set("error", r.Error)
	case r.Warning != "":
		out.Set("warning", r.Warning)
	case r.Message != "":
		out.Set("message", r.Message)
	}
	if r.Data != nil {
		out.Set("data", r.Data)
	}
	return out
}

// Encode renders the envelope as JSON text.
func (r Response) Encode(pretty bool) ([]byte, error) {
	return core.Encode(r.Wire(), pretty)
}
