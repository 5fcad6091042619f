/*
Copyright 2025 The realtime-optimizer Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// The optimizer service runs real-time process optimization cycles:
// continuously on a timer, on demand over HTTP, or both.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/config"
	"github.com/industrial-opt/realtime-optimizer/internal/datasource"
	"github.com/industrial-opt/realtime-optimizer/internal/logging"
	"github.com/industrial-opt/realtime-optimizer/internal/orchestrator"
	"github.com/industrial-opt/realtime-optimizer/internal/scheduler"
	"github.com/industrial-opt/realtime-optimizer/internal/server"
	"github.com/industrial-opt/realtime-optimizer/internal/versions"
	"github.com/industrial-opt/realtime-optimizer/pkg/solver"
)

const (
	modeContinuous = "continuous"
	modeAPI        = "api"
	modeHybrid     = "hybrid"
)

func main() {
	var (
		configPath string
		mode       string
	)

	cmd := &cobra.Command{
		Use:          "optimizer",
		Short:        "Real-time process optimization service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch mode {
			case modeContinuous, modeAPI, modeHybrid:
			default:
				return fmt.Errorf("unknown mode %q (want %s, %s or %s)",
					mode, modeContinuous, modeAPI, modeHybrid)
			}
			return run(cmd.Context(), configPath, mode)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file")
	cmd.Flags().StringVar(&mode, "mode", modeHybrid, "service mode: continuous, api or hybrid")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, mode string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(cfg.Verbosity, cfg.Debug)
	if err != nil {
		return err
	}
	log.Info("starting optimizer service", "mode", mode)

	gateway := artifacts.NewHTTPGateway(cfg.Storage.Endpoint, cfg.Storage.Secure)
	cache := artifacts.NewCache(gateway, cfg.Storage.Bucket, artifacts.CacheOptions{
		DefaultTTL: cfg.Cache.ArtifactTTL,
		TTLByClass: map[artifacts.Class]time.Duration{
			artifacts.ClassStrategy: cfg.Cache.StrategyTTL,
		},
	})

	registry := prometheus.NewRegistry()
	artifacts.RegisterMetrics(registry, cache)

	pointer := versions.NewFileSource(cfg.Versions.PointerFile)
	orch := orchestrator.New(
		log.WithName("orchestrator"),
		cache,
		pointer,
		solver.NewNumericSolver(cfg.Solver.Timeout, cfg.Solver.MaxIterations),
		orchestrator.Options{Budget: cfg.Cycle.Budget, StrategyKey: cfg.Strategy.Key},
		orchestrator.NewMetrics(registry),
	)

	group, ctx := errgroup.WithContext(ctx)

	if cfg.Versions.Watch {
		watcher := versions.NewWatcher(pointer.Path(), func() {
			n := cache.InvalidateClass(artifacts.ClassStrategy)
			log.Info("version pointer changed", "invalidated", n)
		}, log.WithName("watcher"))
		group.Go(func() error { return watcher.Start(ctx) })
	}

	if mode == modeContinuous || mode == modeHybrid {
		measurements, err := datasource.NewPostgres(ctx, cfg.Database.ConnString(), cfg.Database.Table)
		if err != nil {
			return err
		}
		defer measurements.Close()

		sched := scheduler.New(
			log.WithName("scheduler"),
			orch,
			measurements,
			versions.NewLastRunStore(cfg.Versions.LastRunFile),
			scheduler.Options{Interval: cfg.Cycle.Interval, StatsEvery: cfg.Cycle.StatsEvery},
		)
		group.Go(func() error { return sched.Run(ctx) })
	}

	if mode == modeAPI || mode == modeHybrid {
		srv := server.New(log.WithName("server"), orch, mode, registry)
		group.Go(func() error { return srv.Start(cfg.API.Addr()) })
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := group.Wait(); err != nil {
		log.Error(err, "service exited")
		return err
	}
	log.Info("optimizer service stopped")
	return nil
}
