package skills

import (
	"context"
	"errors"
	"fmt"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
	"github.com/industrial-opt/realtime-optimizer/internal/logging"
)

// ModelInference resolves its model and scaler through the artifact
// cache at the version the cycle loaded, scales the declared inputs,
// runs one forward pass, and inverse-scales the result. The model
// predicts a change, not an absolute value: each output is the seeded
// current value of the predicted variable (zero when it was never
// measured) plus the inverse-scaled prediction.
type ModelInference struct {
	base
	modelKey    string
	scalerKey   string
	metadataKey string
}

// NewModelInference validates the spec's inference fields.
func NewModelInference(spec Spec) (*ModelInference, error) {
	if spec.Config.Model == "" {
		return nil, errors.New("model_inference requires config.model")
	}
	if len(spec.Inputs) == 0 {
		return nil, errors.New("model_inference requires at least one input")
	}
	if len(spec.Outputs) == 0 {
		return nil, errors.New("model_inference requires at least one output")
	}
	scaler := spec.Config.Scaler
	if scaler == "" {
		scaler = spec.Config.Model // scalers ship next to their model by default
	}
	return &ModelInference{
		base:        base{id: spec.ID, kind: KindModelInference, inputs: spec.Inputs, outputs: spec.Outputs},
		modelKey:    spec.Config.Model,
		scalerKey:   scaler,
		metadataKey: spec.Config.Metadata,
	}, nil
}

// ModelKey returns the logical key of the model artifact, for the
// load-time shape check.
func (s *ModelInference) ModelKey() string { return s.modelKey }

// Execute runs one inference pass against the cycle's data context.
func (s *ModelInference) Execute(ctx context.Context, env *Env, dc *datacontext.Context) error {
	modelVersion := env.Versions.For(artifacts.ClassModel)
	model, err := env.Artifacts.Model(ctx, s.modelKey, modelVersion)
	if err != nil {
		return fmt.Errorf("resolving model %q@%s: %w: %v", s.modelKey, modelVersion, ErrModelUnavailable, err)
	}
	scaler, err := env.Artifacts.Scaler(ctx, s.scalerKey, env.Versions.For(artifacts.ClassScaler))
	if err != nil {
		return fmt.Errorf("resolving scaler %q: %w: %v", s.scalerKey, ErrModelUnavailable, err)
	}

	if err := s.checkMetadata(ctx, env); err != nil {
		return err
	}

	if len(s.inputs) != model.InputWidth() {
		return fmt.Errorf("%w: skill declares %d inputs, model %q expects %d",
			ErrShapeMismatch, len(s.inputs), s.modelKey, model.InputWidth())
	}
	if len(s.outputs) != model.OutputWidth() {
		return fmt.Errorf("%w: skill declares %d outputs, model %q emits %d",
			ErrShapeMismatch, len(s.outputs), s.modelKey, model.OutputWidth())
	}

	scaled := make([]float64, len(s.inputs))
	for i, name := range s.inputs {
		v, err := dc.Get(name)
		if err != nil {
			return err
		}
		scaled[i] = scaler.Transform(name, v)
	}

	raw, err := model.Forward(scaled)
	if err != nil {
		return err
	}

	for i, name := range s.outputs {
		current, _ := dc.Initial(name)
		if err := dc.Set(name, current+scaler.Inverse(name, raw[i])); err != nil {
			return err
		}
	}
	return nil
}

// checkMetadata verifies the declared inputs against the model's
// training feature list when a metadata artifact is configured.
// Metadata is optional: an unresolvable artifact skips the check.
func (s *ModelInference) checkMetadata(ctx context.Context, env *Env) error {
	if s.metadataKey == "" {
		return nil
	}
	md, err := env.Artifacts.Metadata(ctx, s.metadataKey, env.Versions.For(artifacts.ClassMetadata))
	if err != nil {
		logging.FromContext(ctx).V(logging.DEBUG).Info("skipping metadata check",
			"skill", s.id, "metadata", s.metadataKey, "reason", err.Error())
		return nil
	}
	features, ok := md["features"].([]any)
	if !ok {
		return nil
	}
	if len(features) != len(s.inputs) {
		return fmt.Errorf("%w: skill declares %d inputs, metadata %q lists %d features",
			ErrShapeMismatch, len(s.inputs), s.metadataKey, len(features))
	}
	for i, f := range features {
		name, _ := f.(string)
		if name != s.inputs[i] {
			return fmt.Errorf("%w: input %d is %q, metadata %q expects %q",
				ErrShapeMismatch, i, s.inputs[i], s.metadataKey, name)
		}
	}
	return nil
}
