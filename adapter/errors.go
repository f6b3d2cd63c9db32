package adapter

import "github.com/pkg/errors"

// Sentinel-ish error kinds the adapter surfaces to callers. They are
// wrapped with context via github.com/pkg/errors rather than compared
// directly, matching how the rest of the bridge reports failure.
var (
	// ErrUnresolvableBreakpoint: no generated path from the source map,
	// no target path, or the script hasn't loaded yet.
	ErrUnresolvableBreakpoint = errors.New("unresolvable breakpoint")

	// ErrMetaScript: toggleSkipFileStatus was asked to flip a script
	// whose generated path equals its authored path despite having a
	// source map.
	ErrMetaScript = errors.New("cannot toggle skip status of a meta-script")

	// ErrNotInStack: toggleSkipFileStatus targeted a path/sourceReference
	// absent from the last paused stack.
	ErrNotInStack = errors.New("path not present in current stack")

	// ErrUnsupportedRuntime: the runtime rejected setBlackboxedRanges or
	// setBlackboxPatterns outright.
	ErrUnsupportedRuntime = errors.New("runtime does not support blackboxing")
)

// invalidHitCondition formats the message the spec requires verbatim in
// the DAP Breakpoint response when a hitCondition string fails to parse.
func invalidHitCondition(raw string) string {
	return "Invalid hit condition: " + raw
}
