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

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/industrial-opt/realtime-optimizer/api/v1"
	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/logging"
	"github.com/industrial-opt/realtime-optimizer/internal/orchestrator"
	"github.com/industrial-opt/realtime-optimizer/internal/server"
	"github.com/industrial-opt/realtime-optimizer/internal/versions"
	"github.com/industrial-opt/realtime-optimizer/pkg/solver"
)

const bucket = "plant-artifacts"

// co_ppm = 2*feed_rate + 40, independent of oxygen_flow.
const reactorModel = `{"name":"reactor-co","activation":"identity","layers":[{"weights":[[2,0]],"bias":[40]}]}`

const reactorScaler = `{"params":{}}`

const reactorStrategyV1 = `
name: reactor
variables:
  feed_rate:
    category: informative
    units: t/h
  oxygen_flow:
    category: operative
    units: nm3/h
    threshold: 50
  co_ppm:
    category: predicted
    units: ppm
  co_score:
    category: calculated
  cost:
    category: calculated
skills:
  predict_co:
    kind: model_inference
    inputs: [feed_rate, oxygen_flow]
    outputs: [co_ppm]
    config:
      model: reactor-co
  limit_co:
    kind: constraint
    inputs: [co_ppm]
    outputs: [co_score]
    config:
      max: 200
      phys_max: 400
      mode: soft
  compute_cost:
    kind: function
    inputs: [oxygen_flow]
    outputs: [cost]
    config:
      formula: (oxygen_flow - 900.0) * (oxygen_flow - 900.0) * 0.001
  cost_chain:
    kind: composition
    config:
      sequence: [compute_cost]
  optimize_oxygen:
    kind: optimizer
    inputs: [oxygen_flow]
    config:
      cost_skill: cost_chain
      cost_variable: cost
tasks:
  - name: predict
    skills: [predict_co, limit_co]
  - name: optimize
    skills: [optimize_oxygen]
outputs: [oxygen_flow, co_ppm, co_score]
`

// v2 relaxes the CO limit above the model's prediction.
var reactorStrategyV2 = strings.Replace(reactorStrategyV1, "max: 200", "max: 250", 1)

type mutableVersions struct {
	desc versions.Descriptor
}

func (m *mutableVersions) Read(context.Context) (versions.Descriptor, error) {
	return m.desc, nil
}

var _ = Describe("optimization pipeline", func() {
	var (
		gateway *artifacts.MemoryGateway
		pointer *mutableVersions
		orch    *orchestrator.Orchestrator
		input   orchestrator.Input
	)

	BeforeEach(func() {
		gateway = artifacts.NewMemoryGateway()
		gateway.Put(bucket, "models/reactor-co/1.0.0.json", []byte(reactorModel))
		gateway.Put(bucket, "scalers/reactor-co/1.0.0.json", []byte(reactorScaler))
		gateway.Put(bucket, "strategies/reactor/1.0.0.yaml", []byte(reactorStrategyV1))

		pointer = &mutableVersions{desc: versions.Descriptor{
			artifacts.ClassModel:    "1.0.0",
			artifacts.ClassScaler:   "1.0.0",
			artifacts.ClassStrategy: "1.0.0",
		}}

		cache := artifacts.NewCache(gateway, bucket, artifacts.CacheOptions{})
		orch = orchestrator.New(
			logging.NewTestLogger(GinkgoT()),
			cache, pointer,
			solver.NewNumericSolver(5*time.Second, 500),
			orchestrator.Options{Budget: 30 * time.Second, StrategyKey: "reactor"},
			nil,
		)

		input = orchestrator.Input{
			Timestamp: time.Now(),
			Values:    map[string]float64{"feed_rate": 85, "oxygen_flow": 850},
		}
	})

	It("runs a full cycle through prediction, constraint and optimization", func() {
		result, err := orch.RunCycle(context.Background(), input)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Outputs["co_ppm"]).To(BeNumerically("~", 210.0, 1e-6))
		Expect(result.Feasible).To(BeFalse(), "CO prediction exceeds the soft limit")
		Expect(result.Outputs["co_score"]).To(BeNumerically("~", 0.95, 1e-6))

		Expect(result.Recommendations).To(HaveLen(1))
		rec := result.Recommendations[0]
		Expect(rec.Variable).To(Equal("oxygen_flow"))
		Expect(rec.Current).To(Equal(850.0))
		Expect(rec.Recommended).To(BeNumerically("~", 900.0, 0.5), "cost minimum sits on the move limit")
		Expect(rec.Delta).To(BeNumerically("~", 50.0, 0.5))
	})

	It("reuses cached artifacts across cycles and refetches after a version bump", func() {
		_, err := orch.RunCycle(context.Background(), input)
		Expect(err).NotTo(HaveOccurred())
		_, err = orch.RunCycle(context.Background(), input)
		Expect(err).NotTo(HaveOccurred())
		Expect(gateway.Fetches(bucket, "strategies/reactor/1.0.0.yaml")).To(Equal(1))

		gateway.Put(bucket, "strategies/reactor/2.0.0.yaml", []byte(reactorStrategyV2))
		pointer.desc = versions.Descriptor{
			artifacts.ClassModel:    "1.0.0",
			artifacts.ClassScaler:   "1.0.0",
			artifacts.ClassStrategy: "2.0.0",
		}

		result, err := orch.RunCycle(context.Background(), input)
		Expect(err).NotTo(HaveOccurred())
		Expect(gateway.Fetches(bucket, "strategies/reactor/2.0.0.yaml")).To(Equal(1))
		Expect(result.StrategyVersion).To(Equal("2.0.0"))
		Expect(result.Feasible).To(BeTrue(), "v2 raises the CO limit above the prediction")
	})

	It("serves on-demand cycles over the HTTP surface", func() {
		srv := server.New(logging.NewTestLogger(GinkgoT()), orch, "api", nil)

		body := `{"values":{"feed_rate":85,"oxygen_flow":850}}`
		req := httptest.NewRequest(http.MethodPost, "/process/optimize", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())
		var resp v1.OptimizeResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Feasible).To(BeFalse())
		Expect(resp.Outputs["co_ppm"]).To(BeNumerically("~", 210.0, 1e-6))
		Expect(resp.CycleID).NotTo(BeEmpty())
	})
})
