package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// incomeModel says yes with probability income/100000, capped at 1.
type incomeModel struct{}

func (incomeModel) PredictNamed(v map[string]float64) (string, []float64, error) {
	p := min(v[model.ColumnIncome]/100000, 1)
	if p >= 0.5 {
		return model.LabelYes, []float64{1 - p, p}, nil
	}
	return model.LabelNo, []float64{1 - p, p}, nil
}

func (incomeModel) ClassLabels() []string { return []string{model.LabelNo, model.LabelYes} }

func (incomeModel) TypeName() string { return "RandomForestClassifier" }

func newAPI(t *testing.T, svc *server.Service) *Client {
	t.Helper()
	srv := httptest.NewServer(server.New(svc).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 0)
}

var meta = &model.Metadata{RunID: "run-1", ExperimentName: "exp", ModelName: "SubscriptionPredictor"}

func TestClientAgainstService(t *testing.T) {
	ctx := context.Background()
	c := newAPI(t, server.NewService(incomeModel{}, meta))

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.ModelLoaded)

	info, err := c.ModelInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income"}, info.Features)
	assert.Equal(t, "run-1", info.RunID)

	resp, err := c.Predict(ctx, 40, 80000)
	require.NoError(t, err)
	assert.Equal(t, "yes", resp.Prediction)
	assert.InDelta(t, 0.8, resp.PredictionProba["yes"], 1e-9)
}

func TestClientUnavailableModel(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := newAPI(t, server.LoadService(filepath.Join(dir, "m.json"), filepath.Join(dir, "meta.json")))

	_, err := c.ModelInfo(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Contains(t, apiErr.Body, "model not available")
}

func TestSteps(t *testing.T) {
	assert.Equal(t, []int64{25, 30, 35}, Steps(Range{25, 35}, 5, 10))
	assert.Equal(t, []int64{25, 30}, Steps(Range{25, 34}, 5, 10))
	assert.Len(t, Steps(Range{18, 100}, 5, 10), 10)
	assert.Len(t, Steps(Range{20000, 200000}, 5000, 10), 10)
	assert.Equal(t, []int64{40}, Steps(Range{40, 40}, 5, 10))
}

func TestExploreOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultExploreOptions().Validate())
	assert.Error(t, ExploreOptions{Ages: Range{10, 40}, Incomes: Range{30000, 40000}}.Validate())
	assert.Error(t, ExploreOptions{Ages: Range{40, 30}, Incomes: Range{30000, 40000}}.Validate())
	assert.Error(t, ExploreOptions{Ages: Range{20, 30}, Incomes: Range{30000, 250000}}.Validate())
}

type flakyPredictor struct {
	calls atomic.Int32
}

func (f *flakyPredictor) Predict(_ context.Context, age, income int64) (*model.PredictionResponse, error) {
	f.calls.Add(1)
	if age == 30 {
		return nil, errors.New("connection reset")
	}
	return &model.PredictionResponse{
		Prediction:      model.LabelNo,
		PredictionProba: map[string]float64{model.LabelNo: 0.6, model.LabelYes: 0.4},
	}, nil
}

func TestExploreSkipsFailedPoints(t *testing.T) {
	p := &flakyPredictor{}
	points, err := Explore(context.Background(), p, ExploreOptions{
		Ages:    Range{25, 35},
		Incomes: Range{30000, 40000},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 9, p.calls.Load())
	assert.Len(t, points, 6)
	for _, pt := range points {
		assert.NotEqual(t, int64(30), pt.Age)
		assert.Equal(t, 0.4, pt.ProbYes)
	}
}

func TestExploreCapsGrid(t *testing.T) {
	p := &flakyPredictor{}
	points, err := Explore(context.Background(), p, ExploreOptions{
		Ages:    Range{35, 100},
		Incomes: Range{20000, 200000},
	})
	require.NoError(t, err)
	assert.Len(t, points, 100)
}

func TestHeatMap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HeatMap(&buf, []model.GridPoint{
		{Age: 30, Income: 40000, ProbYes: 0.1},
		{Age: 25, Income: 40000, ProbYes: 0.95},
		{Age: 25, Income: 30000, ProbYes: 0.5},
	}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "30000")
	assert.Less(t, strings.Index(lines[1], "30000"), strings.Index(lines[1], "40000"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[2]), "25"))
	assert.Contains(t, lines[2], "0.50")
	assert.Contains(t, lines[2], "@  0.95")
	assert.Contains(t, lines[3], "0.10")

	buf.Reset()
	require.NoError(t, HeatMap(&buf, nil))
	assert.Equal(t, "no predictions to plot\n", buf.String())
}

func TestRunWritesOutputs(t *testing.T) {
	c := newAPI(t, server.NewService(incomeModel{}, meta))
	dir := t.TempDir()

	opts := DefaultOptions()
	opts.CSVPath = filepath.Join(dir, "explore.csv")
	opts.JSONPath = filepath.Join(dir, "explore.jsonl")

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), c, opts, &out))

	text := out.String()
	assert.Contains(t, text, "API status: healthy (model loaded: true)")
	assert.Contains(t, text, "RandomForestClassifier SubscriptionPredictor")
	assert.Contains(t, text, "Likely to subscribe (confidence 50.0%)")
	assert.Contains(t, text, "Explored 90 combinations")

	data, err := os.ReadFile(opts.CSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "age,income,prediction,prob_yes", lines[0])
	assert.Len(t, lines, 91)
	assert.Equal(t, "25,30000,no,0.3000", lines[1])

	data, err = os.ReadFile(opts.JSONPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 90)
}

func TestRunWithoutModel(t *testing.T) {
	dir := t.TempDir()
	c := newAPI(t, server.LoadService(filepath.Join(dir, "m.json"), filepath.Join(dir, "meta.json")))

	opts := DefaultOptions()
	opts.Explore = false
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), c, opts, &out))
	assert.Contains(t, out.String(), "model loaded: false")
	assert.Contains(t, out.String(), "Model: not available")
	assert.Contains(t, out.String(), "Prediction error: bad status 503")
}

func TestRunAbortsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := Run(context.Background(), NewClient(url, 0), DefaultOptions(), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrServiceUnreachable)
}

func TestRunRejectsOutOfBoundsInput(t *testing.T) {
	opts := DefaultOptions()
	opts.Age = 17
	err := Run(context.Background(), NewClient("http://127.0.0.1:1", 0), opts, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age 17")
}
