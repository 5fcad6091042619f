package artifacts

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Model is a decoded feed-forward inference model: dense layers with a
// shared hidden activation and a linear output layer. Immutable once
// decoded; cache entries own the only reference.
type Model struct {
	Name       string
	Activation string
	layers     []layer
}

type layer struct {
	weights *mat.Dense // outputs x inputs
	bias    *mat.VecDense
}

type modelDoc struct {
	Name       string     `json:"name"`
	Activation string     `json:"activation"`
	Layers     []layerDoc `json:"layers"`
}

type layerDoc struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// DecodeModel parses the serialized model format and validates that the
// layer shapes chain together.
func DecodeModel(data []byte) (*Model, error) {
	var doc modelDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding model: %w: %v", ErrCorrupt, err)
	}
	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("decoding model %q: no layers: %w", doc.Name, ErrCorrupt)
	}
	switch doc.Activation {
	case "", "tanh", "relu", "identity":
	default:
		return nil, fmt.Errorf("decoding model %q: unknown activation %q: %w", doc.Name, doc.Activation, ErrCorrupt)
	}

	m := &Model{Name: doc.Name, Activation: doc.Activation}
	prevOut := -1
	for i, ld := range doc.Layers {
		rows := len(ld.Weights)
		if rows == 0 {
			return nil, fmt.Errorf("decoding model %q: layer %d has no rows: %w", doc.Name, i, ErrCorrupt)
		}
		cols := len(ld.Weights[0])
		flat := make([]float64, 0, rows*cols)
		for _, row := range ld.Weights {
			if len(row) != cols {
				return nil, fmt.Errorf("decoding model %q: layer %d is ragged: %w", doc.Name, i, ErrCorrupt)
			}
			flat = append(flat, row...)
		}
		if len(ld.Bias) != rows {
			return nil, fmt.Errorf("decoding model %q: layer %d bias length %d != %d rows: %w",
				doc.Name, i, len(ld.Bias), rows, ErrCorrupt)
		}
		if prevOut >= 0 && cols != prevOut {
			return nil, fmt.Errorf("decoding model %q: layer %d expects %d inputs, previous layer emits %d: %w",
				doc.Name, i, cols, prevOut, ErrCorrupt)
		}
		prevOut = rows
		m.layers = append(m.layers, layer{
			weights: mat.NewDense(rows, cols, flat),
			bias:    mat.NewVecDense(rows, append([]float64(nil), ld.Bias...)),
		})
	}
	return m, nil
}

// InputWidth returns the number of input features the model expects.
func (m *Model) InputWidth() int {
	_, c := m.layers[0].weights.Dims()
	return c
}

// OutputWidth returns the number of values the model emits.
func (m *Model) OutputWidth() int {
	r, _ := m.layers[len(m.layers)-1].weights.Dims()
	return r
}

// Forward runs one inference pass. The input length must equal
// InputWidth; the caller applies any scaling.
func (m *Model) Forward(inputs []float64) ([]float64, error) {
	if len(inputs) != m.InputWidth() {
		return nil, fmt.Errorf("model %q: got %d inputs, expects %d", m.Name, len(inputs), m.InputWidth())
	}
	v := mat.NewVecDense(len(inputs), append([]float64(nil), inputs...))
	for i, l := range m.layers {
		rows, _ := l.weights.Dims()
		next := mat.NewVecDense(rows, nil)
		next.MulVec(l.weights, v)
		next.AddVec(next, l.bias)
		if i < len(m.layers)-1 {
			m.activate(next)
		}
		v = next
	}
	out := make([]float64, v.Len())
	copy(out, v.RawVector().Data)
	return out, nil
}

func (m *Model) activate(v *mat.VecDense) {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		switch m.Activation {
		case "relu":
			v.SetVec(i, math.Max(0, x))
		case "identity":
			// linear layer
		default:
			v.SetVec(i, math.Tanh(x))
		}
	}
}
