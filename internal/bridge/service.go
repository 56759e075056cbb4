package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/spoolworks/spoolbridge/internal/moonraker"
	"github.com/spoolworks/spoolbridge/internal/observability"
	"github.com/spoolworks/spoolbridge/internal/spoolman"
)

// eventBacklog bounds spool events queued between the session reader
// and the serial consumer.
const eventBacklog = 16

var (
	ErrMoonrakerURLRequired = errors.New("bridge: moonraker url required")
	ErrSpoolmanURLRequired  = errors.New("bridge: spoolman url required")
	ErrMacroPrefixRequired  = errors.New("bridge: set macro prefix required")
)

// ServiceConfig configures the bridge agent runtime.
type ServiceConfig struct {
	MoonrakerURL      string
	SpoolmanURL       string
	SetMacroPrefix    string
	ClearMacro        string
	LoadCompleteMacro string
	MetricsAddr       string
	Session           moonraker.Config
}

// DefaultServiceConfig returns standalone agent defaults matching the
// conventional local Moonraker/Spoolman deployment.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MoonrakerURL:      "ws://localhost:7125/websocket",
		SpoolmanURL:       "http://localhost:7912/api",
		SetMacroPrefix:    "_SPOOLMAN_SET_FIELD_",
		ClearMacro:        "_SPOOLMAN_CLEAR_SPOOL",
		LoadCompleteMacro: "_SPOOLMAN_LOAD_COMPLETE",
		Session:           moonraker.DefaultConfig(),
	}
}

// Validate checks the config for required fields.
func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.MoonrakerURL) == "" {
		return ErrMoonrakerURLRequired
	}
	if strings.TrimSpace(c.SpoolmanURL) == "" {
		return ErrSpoolmanURLRequired
	}
	if strings.TrimSpace(c.SetMacroPrefix) == "" {
		return ErrMacroPrefixRequired
	}
	return nil
}

// Service is the long-lived bridge agent: it supervises the control-plane
// session, rebuilds the macro registry per session, and drains spool
// events serially through a SpoolEventHandler.
type Service struct {
	cfg       ServiceConfig
	inventory *spoolman.Client
	log       zerolog.Logger
	rng       *rand.Rand
}

// NewService validates config and builds the inventory collaborator.
func NewService(cfg ServiceConfig, logger zerolog.Logger) (*Service, error) {
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inventory, err := spoolman.NewClient(spoolman.ClientConfig{BaseURL: cfg.SpoolmanURL})
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		inventory: inventory,
		log:       logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run blocks until process signal shutdown, reconnecting to the control
// plane with backoff whenever the session drops.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext runs the session supervision loop until ctx is cancelled.
func (s *Service) RunContext(ctx context.Context) error {
	if addr := strings.TrimSpace(s.cfg.MetricsAddr); addr != "" {
		go func() {
			if err := observability.ServeMetrics(ctx, addr); err != nil {
				s.log.Warn().Err(err).Str("addr", addr).Msg("bridge.Service metrics listener stopped")
			}
		}()
	}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		client, err := moonraker.Dial(ctx, s.cfg.MoonrakerURL, s.cfg.Session)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempt++
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Str("url", s.cfg.MoonrakerURL).
				Msg("bridge.Service connect failed")
			if err := s.waitReconnectBackoff(ctx, attempt); err != nil {
				return nil
			}
			continue
		}
		attempt = 0

		err = s.runSession(ctx, client)
		_ = client.Close()
		if ctx.Err() != nil {
			s.log.Info().Msg("bridge.Service shutdown")
			return nil
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("bridge.Service session lost")
		} else {
			s.log.Warn().Msg("bridge.Service session closed by peer")
		}
		attempt++
		if err := s.waitReconnectBackoff(ctx, attempt); err != nil {
			return nil
		}
	}
}

// runSession owns one connected session: subscribe, enumerate macros,
// build the session registry, then drain events until the connection
// drops. A single consumer drains the event channel, so each event is
// handled to completion before the next one starts.
func (s *Service) runSession(ctx context.Context, client *moonraker.Client) error {
	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	// Subscribe before enumerating macros so an event fired right after
	// the listing is not lost. The buffer decouples the session reader
	// from the consumer; the single consumer below still handles events
	// strictly one at a time.
	events := make(chan json.RawMessage, eventBacklog)
	client.OnNotification(EventActiveSpoolSet, func(params json.RawMessage) {
		select {
		case events <- moonraker.UnwrapParams(params):
		case <-sessionCtx.Done():
		}
	})

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.Session.CallTimeout)
	objects, err := client.ListObjects(listCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("bridge: enumerate macros: %w", err)
	}
	registry := BuildMacroRegistry(objects)
	s.log.Info().
		Int("macros", registry.Len()).
		Str("url", s.cfg.MoonrakerURL).
		Msg("bridge.Service session ready")

	handler := NewSpoolEventHandler(
		HandlerConfig{
			SetMacroPrefix:    s.cfg.SetMacroPrefix,
			ClearMacro:        s.cfg.ClearMacro,
			LoadCompleteMacro: s.cfg.LoadCompleteMacro,
		},
		registry,
		s.inventory,
		client,
		s.log,
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return client.Err()
		case params := <-events:
			if err := handler.HandleActiveSpoolSet(ctx, params); err != nil {
				s.log.Warn().Err(err).Msg("bridge.Service dropped event")
			}
		}
	}
}

// waitReconnectBackoff sleeps the reconnect delay for attempt N, or
// returns early on shutdown.
func (s *Service) waitReconnectBackoff(ctx context.Context, attempt int) error {
	delay := moonraker.NextBackoffDelay(s.cfg.Session.Backoff, attempt, s.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
