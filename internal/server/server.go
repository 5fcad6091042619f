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

// Package server exposes on-demand optimization over HTTP. Requested
// cycles run concurrently with the scheduler's continuous cycles; the
// orchestrator keeps them isolated.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/industrial-opt/realtime-optimizer/api/v1"
	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/orchestrator"
)

// Server wraps the orchestrator in the service's HTTP surface.
type Server struct {
	log  logr.Logger
	orch *orchestrator.Orchestrator
	mode string
	echo *echo.Echo
}

// New builds the HTTP server. mode is reported by the health endpoint.
// A non-nil gatherer additionally mounts /metrics.
func New(log logr.Logger, orch *orchestrator.Orchestrator, mode string, gatherer prometheus.Gatherer) *Server {
	s := &Server{log: log, orch: orch, mode: mode, echo: echo.New()}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())

	s.echo.GET("/process/health", s.health)
	s.echo.POST("/process/optimize", s.optimize)
	s.echo.GET("/process/cache/stats", s.cacheStats)
	s.echo.POST("/process/cache/clear", s.cacheClear)
	s.echo.PUT("/process/strategy-version-update", s.strategyVersionUpdate)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("API listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for handler tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, v1.HealthResponse{Status: "ok", Mode: s.mode})
}

func (s *Server) optimize(c echo.Context) error {
	var req v1.OptimizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: "invalid request body: " + err.Error()})
	}
	if len(req.Values) == 0 {
		return c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: "values must not be empty"})
	}
	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	result, err := s.orch.RunCycle(c.Request().Context(), orchestrator.Input{
		Timestamp: ts,
		Values:    req.Values,
	})
	if err != nil {
		var cerr *orchestrator.CycleError
		if errors.As(err, &cerr) {
			status := http.StatusInternalServerError
			if errors.Is(err, orchestrator.ErrMissingVariable) {
				status = http.StatusBadRequest
			}
			return c.JSON(status, v1.ErrorResponse{Error: cerr.Err.Error(), State: string(cerr.State)})
		}
		return c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, toResponse(result))
}

func (s *Server) cacheStats(c echo.Context) error {
	stats := s.orch.Cache().Stats()
	return c.JSON(http.StatusOK, v1.CacheStatsResponse{
		Hits:          stats.Hits,
		Misses:        stats.Misses,
		Evictions:     stats.Evictions,
		BytesResident: stats.BytesResident,
		EntryCount:    stats.EntryCount,
	})
}

func (s *Server) cacheClear(c echo.Context) error {
	n := s.orch.Cache().InvalidateAll()
	s.log.Info("cache cleared by request", "evicted", n)
	return c.JSON(http.StatusOK, v1.CacheClearResponse{Evicted: n})
}

// strategyVersionUpdate drops the cached strategy so the next cycle
// resolves whatever version the pointer source now names.
func (s *Server) strategyVersionUpdate(c echo.Context) error {
	n := s.orch.Cache().InvalidateClass(artifacts.ClassStrategy)
	s.log.Info("strategy version update requested", "invalidated", n)
	return c.JSON(http.StatusOK, v1.VersionUpdateResponse{Invalidated: n})
}

func toResponse(r *orchestrator.Result) v1.OptimizeResponse {
	resp := v1.OptimizeResponse{
		CycleID:         r.CycleID,
		StrategyVersion: r.StrategyVersion,
		MeasurementTime: r.MeasurementTime,
		Outputs:         r.Outputs,
		Feasible:        r.Feasible,
		DurationSeconds: r.Duration.Seconds(),
	}
	for _, v := range r.Violations {
		resp.Violations = append(resp.Violations, v1.Violation{
			Constraint: v.Constraint,
			Variable:   v.Variable,
			Value:      v.Value,
			Bound:      v.Bound,
			Hard:       v.Hard,
			Clamped:    v.Clamped,
		})
	}
	for _, rec := range r.Recommendations {
		resp.Recommendations = append(resp.Recommendations, v1.Recommendation(rec))
	}
	return resp
}
