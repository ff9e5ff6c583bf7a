package core

import (
	"github.com/samber/lo"
)

// Status tags how a Result was produced.
type Status string

const (
	// StatusDirect: the value was a primitive and copied as-is.
	StatusDirect Status = "direct"
	// StatusHandler: a registered handler produced the mapping.
	StatusHandler Status = "handler"
	// StatusFallback: the reflective serializer produced the mapping.
	StatusFallback Status = "fallback"
	// StatusCircular: the value had already been visited in this pass.
	StatusCircular Status = "circular_reference"
	// StatusError: an unexpected failure escaped every other guard.
	StatusError Status = "error"
)

// Result is the outward record of one serialization. Results are created
// fresh per call and not modified after they are returned.
type Result struct {
	TypeName      string
	Status        Status
	Value         any
	ReferencePath string
	Serialized    []string
	Failed        []MemberError
	Truncated     bool
	Nodes         int
	PassID        string
	Error         string
}

// Degraded reports whether the value is less complete than requested: a
// handler or member failed, or a budget truncated the tree.
func (r Result) Degraded() bool {
	return r.Status == StatusError || len(r.Failed) > 0 || r.Truncated
}

// FailedMembers returns the names of members that failed.
func (r Result) FailedMembers() []string {
	return lo.Map(r.Failed, func(e MemberError, _ int) string {
		return e.Member
	})
}

// Wire renders the envelope as a wire object.
func (r Result) Wire() *Object {
	obj := NewObject(8)
	obj.Set("type", r.TypeName)
	obj.Set("status", string(r.Status))

	switch r.Status {
	case StatusCircular:
		obj.Set("circular_reference", true)
		obj.Set("reference_path", r.ReferencePath)
	case StatusError:
		obj.Set("error", r.Error)
	default:
		obj.Set("data", r.Value)
	}

	if len(r.Serialized) > 0 {
		obj.Set("serialized_members", lo.Map(r.Serialized, func(s string, _ int) any { return s }))
	}
	if len(r.Failed) > 0 {
		failed := make([]any, 0, len(r.Failed))
		for _, f := range r.Failed {
			failed = append(failed, NewObject(4).
				Set("member", f.Member).
				Set("path", f.Path).
				Set("kind", string(f.Kind)).
				Set("error", f.Message))
		}
		obj.Set("failed_members", failed)
	}
	if r.Truncated {
		obj.Set("truncated", true)
	}
	if r.PassID != "" {
		obj.Set("pass_id", r.PassID)
	}
	return obj
}

// circularMarker is emitted in place of an already visited value.
func circularMarker(path string) *Object {
	return NewObject(2).
		Set("circular_reference", true).
		Set("reference_path", path)
}

// IsCircularMarker reports whether v is a back-reference marker and returns its path.
func IsCircularMarker(v any) (string, bool) {
	obj, ok := v.(*Object)
	if !ok {
		return "", false
	}
	flag, _ := obj.Get("circular_reference")
	if b, _ := flag.(bool); !b {
		return "", false
	}
	path, _ := obj.Get("reference_path")
	s, _ := path.(string)
	return s, true
}
