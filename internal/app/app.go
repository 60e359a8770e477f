package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"remind/internal/config"
	"remind/internal/directory"
	"remind/internal/eventbus"
	"remind/internal/lifecycle"
	"remind/internal/notification"
	"remind/internal/storage"
	"remind/internal/template"
	"remind/internal/wizard"
	logx "remind/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus     eventbus.Bus
	store   storage.Store
	storCfg storage.Config
	dir     directory.Directory

	tmpl *swappableTemplate

	// wizMu guards wizCfg; new sessions pick up the latest config.
	wizMu  sync.Mutex
	wizCfg wizard.Config

	sessions *wizard.Sessions
	mgr      *lifecycle.Manager
	api      *apiServer
}

// swappableTemplate lets a config reload replace the generator without
// touching wizards already holding a reference.
type swappableTemplate struct {
	v atomic.Value // stores tmplBox
}

type tmplBox struct{ svc template.Service }

func (s *swappableTemplate) set(svc template.Service) { s.v.Store(tmplBox{svc: svc}) }

func (s *swappableTemplate) Generate(ctx context.Context, req template.Request) (string, error) {
	box, _ := s.v.Load().(tmplBox)
	if box.svc == nil {
		return "", fmt.Errorf("template service unavailable: %w", notification.ErrGenerationFailed)
	}
	return box.svc.Generate(ctx, req)
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	tmplSvc, err := mapTemplateService(cfg, log.With(logx.String("comp", "template")))
	if err != nil {
		return nil, err
	}
	tmpl := &swappableTemplate{}
	tmpl.set(tmplSvc)

	wizCfg, sessCfg, err := mapWizardConfig(cfg)
	if err != nil {
		return nil, err
	}

	dir := directory.NewMemory()
	mgr := lifecycle.NewManager(store, bus, log.With(logx.String("comp", "lifecycle")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		storCfg: sc,
		dir:     dir,
		tmpl:    tmpl,
		wizCfg:  wizCfg,
		mgr:     mgr,
	}

	a.sessions = wizard.NewSessions(a.newWizard, sessCfg, log.With(logx.String("comp", "sessions")))

	handler := newAPI(a.sessions, mgr, dir, log.With(logx.String("comp", "api"))).routes()
	a.api = newAPIServer(handler, log.With(logx.String("comp", "api")))

	return a, nil
}

func (a *App) newWizard() *wizard.Wizard {
	a.wizMu.Lock()
	cfg := a.wizCfg
	a.wizMu.Unlock()
	return wizard.New(a.tmpl, cfg, a.log.With(logx.String("comp", "wizard")))
}

// Directory exposes the contact directory (seeding, tests).
func (a *App) Directory() directory.Directory { return a.dir }

// Lifecycle exposes the notification manager (external sender wiring).
func (a *App) Lifecycle() *lifecycle.Manager { return a.mgr }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapTemplateService(cfg, logx.Nop()); err != nil {
			return err
		}
		if _, _, err := mapWizardConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	cfg := a.cfgm.Get()
	a.api.Apply(a.sup.Context(), ServerConfig{
		Enabled: cfg.Server.Enabled,
		Address: cfg.Server.AddressOrDefault(),
	})

	// Debug-level event trace; components subscribe themselves for real work.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated reload into the running components.
// Storage is the one section that requires a restart.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))

	if tmplSvc, err := mapTemplateService(cfg, a.log.With(logx.String("comp", "template"))); err != nil {
		a.log.Warn("invalid template config; keeping previous", logx.Err(err))
	} else {
		a.tmpl.set(tmplSvc)
	}

	if wizCfg, _, err := mapWizardConfig(cfg); err != nil {
		a.log.Warn("invalid wizard config; keeping previous", logx.Err(err))
	} else {
		a.wizMu.Lock()
		a.wizCfg = wizCfg
		a.wizMu.Unlock()
	}

	a.api.Apply(ctx, ServerConfig{
		Enabled: cfg.Server.Enabled,
		Address: cfg.Server.AddressOrDefault(),
	})

	if sc, err := mapStorageConfig(cfg); err == nil && sc != a.storCfg {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("api", 2*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
