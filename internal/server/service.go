package server

import (
	"errors"
	"fmt"

	"github.com/daryltucker/subscription-runner/internal/engine"
	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/output"
)

// ErrModelUnavailable is returned when no model is loaded.
var ErrModelUnavailable = errors.New("model not available")

// Classifier is the inference surface the service needs from a model.
type Classifier interface {
	PredictNamed(values map[string]float64) (string, []float64, error)
	ClassLabels() []string
	TypeName() string
}

// State is the load state of the service, decided once at startup.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unloaded"
}

// Service holds the model and its metadata. Both are read-only once the
// service is built, so handlers share it without locking.
type Service struct {
	state   State
	model   Classifier
	meta    *model.Metadata
	loadErr error
}

// NewService returns a loaded service.
func NewService(c Classifier, meta *model.Metadata) *Service {
	return &Service{state: StateLoaded, model: c, meta: meta}
}

// LoadService reads the model and metadata. A failure does not stop the
// process; the service comes up in StateFailed and reports model_loaded=false.
func LoadService(modelPath, metadataPath string) *Service {
	f, meta, err := engine.LoadArtifacts(modelPath, metadataPath)
	if err != nil {
		output.Logger.Error("Model not loaded; serving without a model", "model", modelPath, "metadata", metadataPath, "error", err)
		return &Service{state: StateFailed, loadErr: err}
	}
	output.Logger.Info("Model loaded", "run_id", meta.RunID, "model", meta.ModelName, "classes", f.ClassLabels())
	return NewService(f, meta)
}

// State returns the load state.
func (s *Service) State() State { return s.state }

// Loaded reports whether predictions can be served.
func (s *Service) Loaded() bool { return s.state == StateLoaded }

// LoadError returns why loading failed, if it did.
func (s *Service) LoadError() error { return s.loadErr }

// Metadata returns the loaded metadata or nil.
func (s *Service) Metadata() *model.Metadata { return s.meta }

// Info describes the loaded model.
func (s *Service) Info() (model.ModelInfo, error) {
	if !s.Loaded() {
		return model.ModelInfo{}, ErrModelUnavailable
	}
	return model.ModelInfo{
		ModelType:      s.model.TypeName(),
		RunID:          s.meta.RunID,
		ExperimentName: s.meta.ExperimentName,
		ModelName:      s.meta.ModelName,
		Features:       model.FeatureNames,
	}, nil
}

// PredictionError wraps a failure raised by the model itself.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string { return "prediction error: " + e.Err.Error() }

func (e *PredictionError) Unwrap() error { return e.Err }

// Predict classifies one applicant.
func (s *Service) Predict(age, income int64) (*model.PredictionResponse, error) {
	if !s.Loaded() {
		return nil, ErrModelUnavailable
	}
	label, proba, err := s.model.PredictNamed(map[string]float64{
		model.ColumnAge:    float64(age),
		model.ColumnIncome: float64(income),
	})
	if err != nil {
		return nil, &PredictionError{Err: err}
	}
	classes := s.model.ClassLabels()
	if len(classes) != len(proba) {
		return nil, &PredictionError{Err: fmt.Errorf("%d probabilities for %d classes", len(proba), len(classes))}
	}

	byClass := make(map[string]float64, len(classes))
	for i, c := range classes {
		byClass[c] = proba[i]
	}
	return &model.PredictionResponse{
		Prediction:      label,
		PredictionProba: byClass,
		ModelInfo: model.ModelRef{
			RunID:     s.meta.RunID,
			ModelName: s.meta.ModelName,
		},
	}, nil
}
