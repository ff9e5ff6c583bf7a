package core

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Depth controls how much of an object graph a serialization pass materializes.
// Levels are totally ordered: Basic < Standard < Deep.
type Depth int

const (
	// DepthBasic emits the type name and identity only.
	DepthBasic Depth = iota
	// DepthStandard emits one level of members; nested composites are summarized.
	DepthStandard
	// DepthDeep recursively expands nested values and adds type diagnostics.
	DepthDeep
)

var depthNames = map[Depth]string{
	DepthBasic:    "basic",
	DepthStandard: "standard",
	DepthDeep:     "deep",
}

// String returns the lower-case name of the depth.
func (d Depth) String() string {
	if name, ok := depthNames[d]; ok {
		return name
	}
	return fmt.Sprintf("depth(%d)", int(d))
}

// Valid reports whether d is one of the declared levels.
func (d Depth) Valid() bool {
	return d >= DepthBasic && d <= DepthDeep
}

// ParseDepth converts a depth name (case-insensitive) into a Depth.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return DepthBasic, nil
	case "", "standard":
		return DepthStandard, nil
	case "deep":
		return DepthDeep, nil
	}
	return DepthBasic, errors.Wrapf(ErrInvalidDepth, "unknown depth %q", s)
}

// level is the internal materialization level of a single value. Public depths
// map onto the top three; the two lower ones describe nested renderings.
type level int

const (
	// levelBasic: type and identity.
	levelBasic level = iota
	// levelRef: short reference (type, identity, display name).
	levelRef
	// levelSummary: members, with composite members rendered as short references.
	levelSummary
	// levelStandard: members, with composite members rendered as summaries.
	levelStandard
	// levelDeep: members plus type diagnostics, composites expanded recursively.
	levelDeep
)

func rootLevel(d Depth) level {
	switch d {
	case DepthDeep:
		return levelDeep
	case DepthStandard:
		return levelStandard
	default:
		return levelBasic
	}
}

// nested returns the level used for a composite value found inside a value
// materialized at l. At Deep, handled values stay Deep while reflected values
// drop one notch to Standard, which bounds reflective recursion.
func (l level) nested(handled bool) level {
	switch l {
	case levelDeep:
		if handled {
			return levelDeep
		}
		return levelStandard
	case levelStandard:
		return levelSummary
	default:
		return levelRef
	}
}

// elementParent returns the level collection elements are processed under
// when the collection sits at l: at Deep they expand like members, otherwise
// they render as short references.
func (l level) elementParent() level {
	if l == levelDeep {
		return levelDeep
	}
	return levelSummary
}

// walksMembers reports whether members are enumerated at l.
func (l level) walksMembers() bool {
	return l >= levelSummary
}

// depth maps an internal level back to the public depth handed to handlers.
func (l level) depth() Depth {
	switch {
	case l >= levelDeep:
		return DepthDeep
	case l >= levelSummary:
		return DepthStandard
	default:
		return DepthBasic
	}
}
