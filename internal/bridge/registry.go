package bridge

import "strings"

// MacroTagPrefix tags macro definitions in the control plane's object
// listing; the bare macro name follows it.
const MacroTagPrefix = "gcode_macro "

// MacroRegistry is the set of macro names known to the control plane
// for one connected session. Immutable after construction; a reconnect
// discards it and builds a fresh one from the new session's listing.
type MacroRegistry struct {
	names map[string]struct{}
}

// BuildMacroRegistry selects macro-tagged entries from a control-plane
// object listing and strips the tag to recover the bare macro names.
func BuildMacroRegistry(objects []string) *MacroRegistry {
	names := make(map[string]struct{})
	for _, obj := range objects {
		name, ok := strings.CutPrefix(obj, MacroTagPrefix)
		if !ok || name == "" {
			continue
		}
		names[name] = struct{}{}
	}
	return &MacroRegistry{names: names}
}

// Contains reports whether the macro name is registered.
func (r *MacroRegistry) Contains(name string) bool {
	_, ok := r.names[name]
	return ok
}

// HasAnyWithPrefix reports whether any registered macro name starts
// with the given prefix.
func (r *MacroRegistry) HasAnyWithPrefix(prefix string) bool {
	for name := range r.names {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Len returns the number of registered macros.
func (r *MacroRegistry) Len() int {
	return len(r.names)
}
