package artifacts

import (
	"encoding/json"
	"fmt"
)

// ScaleParam holds standard-scaling parameters for one variable.
type ScaleParam struct {
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// Scaler maps variable names to their scaling parameters. Variables
// without an entry pass through unscaled.
type Scaler struct {
	Params map[string]ScaleParam `json:"params"`
}

// DecodeScaler parses scaler JSON and rejects zero scale factors.
func DecodeScaler(data []byte) (*Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scaler: %w: %v", ErrCorrupt, err)
	}
	for name, p := range s.Params {
		if p.Scale == 0 {
			return nil, fmt.Errorf("decoding scaler: variable %q has zero scale: %w", name, ErrCorrupt)
		}
	}
	if s.Params == nil {
		s.Params = map[string]ScaleParam{}
	}
	return &s, nil
}

// Transform maps a raw value into model space.
func (s *Scaler) Transform(name string, v float64) float64 {
	p, ok := s.Params[name]
	if !ok {
		return v
	}
	return (v - p.Mean) / p.Scale
}

// Inverse maps a model-space value back to engineering units.
func (s *Scaler) Inverse(name string, v float64) float64 {
	p, ok := s.Params[name]
	if !ok {
		return v
	}
	return v*p.Scale + p.Mean
}

// Metadata is auxiliary artifact information (training provenance,
// expected shapes). Kept schemaless; consumers pick what they need.
type Metadata map[string]any

// DecodeMetadata parses metadata JSON.
func DecodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w: %v", ErrCorrupt, err)
	}
	return m, nil
}
