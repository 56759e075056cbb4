package bridge

import (
	"strconv"
	"strings"

	"github.com/spoolworks/spoolbridge/internal/spoolman"
)

// Invocation is one macro call derived from a spool field. Argument is
// the final literal text (quotes included for strings); HasArgument
// distinguishes argument-less calls from an empty string argument.
type Invocation struct {
	Macro       string
	Argument    string
	HasArgument bool
}

// Script renders the gcode invocation text submitted to the control plane.
func (i Invocation) Script() string {
	if !i.HasArgument {
		return i.Macro
	}
	return i.Macro + " VALUE=" + i.Argument
}

// MapFields walks a spool record and emits one Invocation per leaf field
// whose derived macro name is registered. Nested records recurse with the
// field name folded into the prefix, so `vendor.name` maps through
// `<prefix>vendor_name`. Unmatched leaves are skipped silently; output
// order follows record traversal order.
func MapFields(reg *MacroRegistry, prefix string, rec *spoolman.Record) []Invocation {
	if rec == nil {
		return nil
	}
	var out []Invocation
	for _, field := range rec.Fields {
		candidate := prefix + field.Key
		if field.Value.Kind == spoolman.KindRecord {
			out = append(out, MapFields(reg, candidate+"_", field.Value.Record)...)
			continue
		}
		if !reg.Contains(candidate) {
			continue
		}
		out = append(out, Invocation{
			Macro:       candidate,
			Argument:    formatArgument(field.Value),
			HasArgument: true,
		})
	}
	return out
}

// formatArgument renders a leaf value as macro argument text. Numbers
// stay bare; strings get every double quote replaced by two single
// quotes, then double-quote wrapping. The escape is lossy on purpose
// and must stay byte-compatible with existing macros.
func formatArgument(v spoolman.Value) string {
	switch v.Kind {
	case spoolman.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case spoolman.KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		escaped := strings.ReplaceAll(v.Text, `"`, `''`)
		return `"` + escaped + `"`
	}
}
