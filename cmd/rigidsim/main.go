// cmd/rigidsim/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opd-ai/go-rigid/pkg/config"
	"github.com/opd-ai/go-rigid/pkg/event"
	"github.com/opd-ai/go-rigid/pkg/health"
	"github.com/opd-ai/go-rigid/pkg/logging"
	"github.com/opd-ai/go-rigid/pkg/render"
	"github.com/opd-ai/go-rigid/pkg/workers"
	"github.com/opd-ai/go-rigid/pkg/world"
)

func main() {
	logger := logging.NewLogger()
	ctx := logging.WithCorrelationID(context.Background(), logging.GenerateCorrelationID())

	configPath := flag.String("config", "rigidsim.yaml", "Path to configuration file (.yaml, .yml or .json)")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	scenarioName := flag.String("scenario", "stack", "Scenario to run: "+strings.Join(scenarioNames(), ", "))
	size := flag.Int("size", 5, "Scenario size (stack height, chain length, grid side)")
	steps := flag.Int("steps", 600, "Number of fixed steps to run; 0 runs until interrupted")
	view := flag.String("view", "", "Render to the terminal: side or top")
	realtime := flag.Bool("realtime", false, "Pace steps to wall-clock time")
	flag.Parse()

	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file",
			"config_path", *configPath,
		)
		return
	}

	cfg, err := loadConfig(ctx, logger, *configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err,
			"config_path", *configPath,
		)
		os.Exit(1)
	}
	logger = logging.NewLoggerWithWriter(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	build, ok := scenarios[*scenarioName]
	if !ok {
		logger.Error(ctx, "Unknown scenario", nil,
			"scenario", *scenarioName,
			"available", scenarioNames(),
		)
		os.Exit(2)
	}

	w, err := world.New(world.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Error(ctx, "Failed to create world", err)
		os.Exit(1)
	}
	defer w.Close()

	follow, err := build(w, *size)
	if err != nil {
		logger.Error(ctx, "Failed to build scenario", err,
			"scenario", *scenarioName,
		)
		os.Exit(1)
	}
	w.Events().Subscribe(event.BodyOrphaned, func(e event.Event) {
		be := e.(*event.BodyEvent)
		logger.Warn(ctx, "Body left the world", "body", be.Body.String())
		if follow != nil && be.Body == follow.Handle() {
			follow = nil
		}
	})

	var server *health.Server
	if cfg.Health.ListenAddr != "" {
		server = health.NewServer(cfg.Health.ListenAddr, newHealthChecker(cfg, w), cfg.Health.ProbesPerMinute, logger)
		if err := server.Start(); err != nil {
			logger.Error(ctx, "Failed to start health server", err,
				"address", cfg.Health.ListenAddr,
			)
			os.Exit(1)
		}
	}

	var renderer render.Renderer = render.NewNullRenderer(logger)
	var term *render.TerminalRenderer
	if *view != "" {
		term = render.NewTerminalRenderer(os.Stdout, 80, 24, 0.5)
		switch *view {
		case "side":
			term.SetView(render.ViewSide)
		case "top":
			term.SetView(render.ViewTop)
		default:
			logger.Error(ctx, "Unknown view", nil, "view", *view)
			os.Exit(2)
		}
		renderer = term
	}

	logger.Info(ctx, "Starting simulation",
		"scenario", *scenarioName,
		"bodies", w.BodyCount(),
		"constraints", w.ConstraintCount(),
		"steps", *steps,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var reqs []render.DrawRequest
	frame := func() {
		if term != nil && follow != nil {
			term.SetCenter(follow.Position())
		}
		reqs = reqs[:0]
		w.DebugDraw(&reqs)
		render.DrawAll(renderer, reqs)
	}

	ticker := time.NewTicker(time.Duration(w.Timestep() * float64(time.Second)))
	defer ticker.Stop()
	last := time.Now()

	start := time.Now()
	done := 0
run:
	for *steps == 0 || done < *steps {
		select {
		case <-sigChan:
			logger.Info(ctx, "Interrupted")
			break run
		default:
		}

		if *realtime {
			<-ticker.C
			now := time.Now()
			done += w.Update(now.Sub(last).Seconds())
			last = now
		} else {
			w.Step()
			done++
		}
		frame()
	}

	stats := w.LastStats()
	logger.Info(ctx, "Simulation finished",
		"steps", w.StepCount(),
		"bodies", w.BodyCount(),
		"contacts", stats.Contacts,
		"elapsed", time.Since(start),
		"solver", fmt.Sprintf("%+v", w.SolverStats()),
	)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Health server shutdown failed", err)
		}
	}
}

// loadConfig reads path when it exists and falls back to the defaults, then
// applies the RIGID_* environment overrides.
func loadConfig(ctx context.Context, logger *logging.Logger, path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", path,
		)
		return config.LoadConfigFromEnv()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}
	return cfg, nil
}

func newHealthChecker(cfg *config.Config, w *world.World) *health.HealthChecker {
	hc := health.NewHealthChecker()
	hc.AddCheck(health.NewSimulationHealthCheck(w.Running))
	hc.AddCheck(health.NewStepBudgetHealthCheck(cfg.Health.MaxStepDuration.Std(), w.LastStepDuration))
	hc.AddCheck(health.NewSolverHealthCheck(w.SolverStats))
	hc.AddCheck(health.NewMemoryHealthCheck(cfg.Health.MaxMemoryMB, nil))
	hc.AddCheck(workers.NewPoolHealthCheck(w.Pool()))
	return hc
}
