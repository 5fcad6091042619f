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

// Package v1 defines the wire types of the optimization service API.
package v1

import "time"

// OptimizeRequest triggers one on-demand optimization cycle. When
// Timestamp is omitted the service stamps the request with its own
// clock.
type OptimizeRequest struct {
	Timestamp *time.Time         `json:"timestamp,omitempty"`
	Values    map[string]float64 `json:"values"`
}

// Violation reports one constraint check that found its variable out
// of bounds.
type Violation struct {
	Constraint string  `json:"constraint"`
	Variable   string  `json:"variable"`
	Value      float64 `json:"value"`
	Bound      float64 `json:"bound"`
	Hard       bool    `json:"hard"`
	Clamped    bool    `json:"clamped"`
}

// Recommendation reports one operative variable's suggested move.
type Recommendation struct {
	Variable    string  `json:"variable"`
	Current     float64 `json:"current"`
	Recommended float64 `json:"recommended"`
	Delta       float64 `json:"delta"`
}

// OptimizeResponse is one completed cycle.
type OptimizeResponse struct {
	CycleID         string             `json:"cycle_id"`
	StrategyVersion string             `json:"strategy_version"`
	MeasurementTime time.Time          `json:"measurement_time"`
	Outputs         map[string]float64 `json:"outputs"`
	Feasible        bool               `json:"feasible"`
	Violations      []Violation        `json:"violations,omitempty"`
	Recommendations []Recommendation   `json:"recommendations,omitempty"`
	DurationSeconds float64            `json:"duration_seconds"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

// CacheStatsResponse is a snapshot of the artifact cache counters.
type CacheStatsResponse struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Evictions     uint64 `json:"evictions"`
	BytesResident int64  `json:"bytes_resident"`
	EntryCount    int    `json:"entry_count"`
}

// CacheClearResponse reports how many entries a clear evicted.
type CacheClearResponse struct {
	Evicted int `json:"evicted"`
}

// VersionUpdateResponse acknowledges a strategy version update push;
// the next cycle resolves the new version from the pointer source.
type VersionUpdateResponse struct {
	Invalidated int `json:"invalidated"`
}

// ErrorResponse carries a structured failure across the API boundary.
type ErrorResponse struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}
