/*
PURPOSE:
  Defines the data structures shared across pipeline stages and the
  prediction API: model provenance, evaluation report, prediction payloads.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/server, internal/dashboard
  - Shared across boundaries; JSON tags are the on-disk and wire format.

ERROR HANDLING:
  - None (pure data structs).

RELATED FILES:
  - internal/evaluation/report.go
  - internal/server/handlers.go
*/

package model

// Column names of the raw dataset.
const (
	ColumnAge        = "age"
	ColumnIncome     = "income"
	ColumnSubscribed = "subscribed"
	ColumnID         = "id"
)

// Class labels.
const (
	LabelYes = "yes"
	LabelNo  = "no"
)

// FeatureNames is the fixed feature list served by /model/info.
var FeatureNames = []string{ColumnAge, ColumnIncome}

// Record is one validated row of the raw dataset.
type Record struct {
	Age        int64  `validate:"gte=0"`
	Income     int64  `validate:"gte=0"`
	Subscribed string `validate:"oneof=yes no"`
	ID         string
}

// Metadata links a persisted model to its tracking run.
type Metadata struct {
	RunID          string `json:"mlflow_run_id"`
	ExperimentName string `json:"experiment_name"`
	ModelName      string `json:"model_name"`
}

// ClassMetrics is the per-label slice of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// EvaluationReport is written to metrics/evaluation.json.
// Precision, Recall and F1Score are support-weighted averages.
type EvaluationReport struct {
	Accuracy     float64                 `json:"accuracy"`
	Precision    float64                 `json:"precision"`
	Recall       float64                 `json:"recall"`
	F1Score      float64                 `json:"f1_score"`
	Support      int                     `json:"support"`
	ClassMetrics map[string]ClassMetrics `json:"class_metrics"`
}

// PredictionRequest is the POST /predict body. Pointers let the binding layer
// tell a missing field from a zero value.
type PredictionRequest struct {
	Age    *int64 `json:"age" binding:"required"`
	Income *int64 `json:"income" binding:"required"`
}

// PredictionResponse is the POST /predict result.
type PredictionResponse struct {
	Prediction      string             `json:"prediction"`
	PredictionProba map[string]float64 `json:"prediction_proba"`
	ModelInfo       ModelRef           `json:"model_info"`
}

// ModelRef is the provenance echoed with every prediction.
type ModelRef struct {
	RunID     string `json:"mlflow_run_id"`
	ModelName string `json:"model_name"`
}

// ModelInfo is the GET /model/info result.
type ModelInfo struct {
	ModelType      string   `json:"model_type"`
	RunID          string   `json:"mlflow_run_id"`
	ExperimentName string   `json:"experiment_name"`
	ModelName      string   `json:"model_name"`
	Features       []string `json:"features"`
}

// Health is the GET /health result. ModelInfo holds the Metadata when a model
// is loaded and an empty object otherwise.
type Health struct {
	Status      string      `json:"status"`
	ModelLoaded bool        `json:"model_loaded"`
	ModelInfo   interface{} `json:"model_info"`
}

// Status is the GET / result.
type Status struct {
	Message     string `json:"message"`
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// GridPoint is one explored (age, income) prediction from the dashboard.
type GridPoint struct {
	Age        int64   `json:"age"`
	Income     int64   `json:"income"`
	Prediction string  `json:"prediction"`
	ProbYes    float64 `json:"prob_yes"`
}
