package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/spoolworks/spoolbridge/internal/observability"
	"github.com/spoolworks/spoolbridge/internal/spoolman"
)

var ErrMalformedEvent = errors.New("bridge: malformed spool event payload")

// EventActiveSpoolSet is the control-plane notification the handler
// subscribes to.
const EventActiveSpoolSet = "notify_active_spool_set"

// MacroInvoker submits one fire-and-forget gcode invocation.
type MacroInvoker interface {
	RunScript(script string) error
}

// Inventory resolves a spool record by ID with three-way classification.
type Inventory interface {
	GetSpool(ctx context.Context, id int64) spoolman.Lookup
}

// HandlerConfig names the macros the handler dispatches to.
type HandlerConfig struct {
	SetMacroPrefix    string
	ClearMacro        string
	LoadCompleteMacro string
}

// SpoolEventHandler turns one "active spool set" event into macro
// invocations: resolve the spool record, map fields to registered
// macros, invoke each, then signal load completion. Each event is
// handled from a clean slate; all recoverable failures are absorbed
// here so one bad event never ends the session loop.
type SpoolEventHandler struct {
	cfg       HandlerConfig
	registry  *MacroRegistry
	inventory Inventory
	invoker   MacroInvoker
	log       zerolog.Logger
}

// NewSpoolEventHandler binds one session's registry and collaborators.
func NewSpoolEventHandler(
	cfg HandlerConfig,
	registry *MacroRegistry,
	inventory Inventory,
	invoker MacroInvoker,
	logger zerolog.Logger,
) *SpoolEventHandler {
	return &SpoolEventHandler{
		cfg:       cfg,
		registry:  registry,
		inventory: inventory,
		invoker:   invoker,
		log:       logger,
	}
}

// HandleActiveSpoolSet processes one event payload. The only returned
// error is a malformed payload; the caller logs and drops that event.
func (h *SpoolEventHandler) HandleActiveSpoolSet(ctx context.Context, params json.RawMessage) error {
	spoolID, err := decodeSpoolSelection(params)
	if err != nil {
		observability.RecordSpoolEvent("malformed")
		return err
	}

	if spoolID == nil {
		h.log.Debug().Msg("bridge.SpoolEventHandler active spool cleared")
		h.clearSpool()
		observability.RecordSpoolEvent("cleared")
		return nil
	}

	if !h.registry.HasAnyWithPrefix(h.cfg.SetMacroPrefix) {
		h.log.Debug().
			Str("prefix", h.cfg.SetMacroPrefix).
			Msg("bridge.SpoolEventHandler no field macros registered, skipping lookup")
		observability.RecordSpoolEvent("no_set_macros")
		return nil
	}

	h.log.Debug().Int64("spool_id", *spoolID).Msg("bridge.SpoolEventHandler fetching spool data")
	start := time.Now()
	lookup := h.inventory.GetSpool(ctx, *spoolID)
	observability.RecordLookup(lookupOutcomeLabel(lookup.Outcome), time.Since(start))

	switch lookup.Outcome {
	case spoolman.LookupNotFound:
		h.log.Info().Int64("spool_id", *spoolID).Msg("bridge.SpoolEventHandler spool not found, clearing fields")
		h.clearSpool()
		observability.RecordSpoolEvent("not_found")
		return nil
	case spoolman.LookupFailed:
		h.log.Info().
			Int64("spool_id", *spoolID).
			Str("cause", lookup.Failure.Message()).
			Msg("bridge.SpoolEventHandler attempt to fetch spool info failed")
		observability.RecordSpoolEvent("lookup_failed")
		return nil
	}

	h.log.Info().
		Int64("spool_id", *spoolID).
		Int("fields", lookup.Record.Len()).
		Msg("bridge.SpoolEventHandler fetched spool data")
	h.dispatchFields(lookup.Record)
	observability.RecordSpoolEvent("dispatched")
	return nil
}

// dispatchFields issues one invocation per mapped field, in traversal
// order, and signals load completion strictly after the last one.
func (h *SpoolEventHandler) dispatchFields(rec *spoolman.Record) {
	for _, inv := range MapFields(h.registry, h.cfg.SetMacroPrefix, rec) {
		h.runScript(inv.Script(), "field")
	}
	if h.registry.Contains(h.cfg.LoadCompleteMacro) {
		h.runScript(h.cfg.LoadCompleteMacro, "load_complete")
	}
}

// clearSpool invokes the clear macro when it is registered; a missing
// clear macro is expected steady state, not an error.
func (h *SpoolEventHandler) clearSpool() {
	if !h.registry.Contains(h.cfg.ClearMacro) {
		h.log.Debug().Str("macro", h.cfg.ClearMacro).Msg("bridge.SpoolEventHandler no clear macro registered")
		return
	}
	h.runScript(h.cfg.ClearMacro, "clear")
}

func (h *SpoolEventHandler) runScript(script, kind string) {
	h.log.Info().Str("script", script).Msg("bridge.SpoolEventHandler run gcode")
	if err := h.invoker.RunScript(script); err != nil {
		h.log.Warn().Err(err).Str("script", script).Msg("bridge.SpoolEventHandler gcode submit failed")
		return
	}
	observability.RecordMacroInvocation(kind)
}

// decodeSpoolSelection extracts the optional spool ID. A payload missing
// the spool_id key entirely is malformed; an explicit null means "no
// spool active".
func decodeSpoolSelection(params json.RawMessage) (*int64, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(params, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	raw, ok := payload["spool_id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing spool_id", ErrMalformedEvent)
	}
	var spoolID *int64
	if err := json.Unmarshal(raw, &spoolID); err != nil {
		return nil, fmt.Errorf("%w: bad spool_id: %v", ErrMalformedEvent, err)
	}
	return spoolID, nil
}

func lookupOutcomeLabel(outcome spoolman.LookupOutcome) string {
	switch outcome {
	case spoolman.LookupFound:
		return "found"
	case spoolman.LookupNotFound:
		return "not_found"
	default:
		return "failed"
	}
}
