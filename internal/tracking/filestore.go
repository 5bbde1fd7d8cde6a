package tracking

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileStore tracks runs in the MLflow file store layout:
//
//	<root>/<experiment_id>/meta.yaml
//	<root>/<experiment_id>/<run_id>/meta.yaml
//	<root>/<experiment_id>/<run_id>/params/<key>
//	<root>/<experiment_id>/<run_id>/metrics/<key>   ("<ts> <value> <step>" lines)
//	<root>/<experiment_id>/<run_id>/artifacts/...
//	<root>/models/<name>/version-<n>/meta.yaml
type FileStore struct {
	Root string
	mu   sync.Mutex
}

// modelsDir holds the model registry under the store root.
const modelsDir = "models"

// NewFileStore creates a store rooted at root. Directories are created lazily.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

// file store status codes
var statusCodes = map[RunStatus]int{
	StatusRunning:  1,
	StatusFinished: 3,
	StatusFailed:   4,
	StatusKilled:   5,
}

func statusFromCode(code int) RunStatus {
	for s, c := range statusCodes {
		if c == code {
			return s
		}
	}
	return StatusRunning
}

type experimentMeta struct {
	ArtifactLocation string `yaml:"artifact_location"`
	CreationTime     int64  `yaml:"creation_time"`
	ExperimentID     string `yaml:"experiment_id"`
	LastUpdateTime   int64  `yaml:"last_update_time"`
	LifecycleStage   string `yaml:"lifecycle_stage"`
	Name             string `yaml:"name"`
}

type runMeta struct {
	ArtifactURI    string `yaml:"artifact_uri"`
	EndTime        *int64 `yaml:"end_time"`
	EntryPointName string `yaml:"entry_point_name"`
	ExperimentID   string `yaml:"experiment_id"`
	LifecycleStage string `yaml:"lifecycle_stage"`
	RunID          string `yaml:"run_id"`
	RunName        string `yaml:"run_name"`
	RunUUID        string `yaml:"run_uuid"`
	SourceName     string `yaml:"source_name"`
	SourceType     int    `yaml:"source_type"`
	SourceVersion  string `yaml:"source_version"`
	StartTime      int64  `yaml:"start_time"`
	Status         int    `yaml:"status"`
	UserID         string `yaml:"user_id"`
}

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

func writeYAML(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *FileStore) experiments() ([]experimentMeta, error) {
	entries, err := os.ReadDir(s.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []experimentMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var m experimentMeta
		if err := readYAML(filepath.Join(s.Root, e.Name(), "meta.yaml"), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// EnsureExperiment implements Tracker.
func (s *FileStore) EnsureExperiment(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exps, err := s.experiments()
	if err != nil {
		return "", fmt.Errorf("failed to list experiments: %w", err)
	}
	next := 0
	for _, e := range exps {
		if e.Name == name && e.LifecycleStage != "deleted" {
			return e.ExperimentID, nil
		}
		if id, err := strconv.Atoi(e.ExperimentID); err == nil && id >= next {
			next = id + 1
		}
	}

	id := strconv.Itoa(next)
	dir := filepath.Join(s.Root, id)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	now := nowMillis()
	meta := experimentMeta{
		ArtifactLocation: "file://" + filepath.ToSlash(abs),
		CreationTime:     now,
		ExperimentID:     id,
		LastUpdateTime:   now,
		LifecycleStage:   "active",
		Name:             name,
	}
	if err := writeYAML(filepath.Join(dir, "meta.yaml"), meta); err != nil {
		return "", fmt.Errorf("failed to create experiment %q: %w", name, err)
	}
	return id, nil
}

// StartRun implements Tracker.
func (s *FileStore) StartRun(_ context.Context, experimentID string, tags map[string]string) (*Run, error) {
	expDir := filepath.Join(s.Root, experimentID)
	if _, err := os.Stat(filepath.Join(expDir, "meta.yaml")); err != nil {
		return nil, fmt.Errorf("experiment %s: %w", experimentID, ErrNotFound)
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	runDir := filepath.Join(expDir, id)
	abs, err := filepath.Abs(filepath.Join(runDir, "artifacts"))
	if err != nil {
		return nil, err
	}
	meta := runMeta{
		ArtifactURI:    "file://" + filepath.ToSlash(abs),
		ExperimentID:   experimentID,
		LifecycleStage: "active",
		RunID:          id,
		RunName:        id[:8],
		RunUUID:        id,
		SourceType:     4,
		StartTime:      nowMillis(),
		Status:         statusCodes[StatusRunning],
	}
	if err := writeYAML(filepath.Join(runDir, "meta.yaml"), meta); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	for k, v := range tags {
		if err := writeValue(filepath.Join(runDir, "tags", k), v); err != nil {
			return nil, err
		}
	}
	return &Run{ID: id, ExperimentID: experimentID, ArtifactURI: meta.ArtifactURI, Status: StatusRunning}, nil
}

func (s *FileStore) runDir(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\.`) {
		return "", fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	matches, err := filepath.Glob(filepath.Join(s.Root, "*", runID, "meta.yaml"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		dir := filepath.Dir(m)
		// registered models share the <root>/<dir>/<name> shape
		if filepath.Base(filepath.Dir(dir)) == modelsDir {
			continue
		}
		return dir, nil
	}
	return "", fmt.Errorf("run %s: %w", runID, ErrNotFound)
}

// GetRun implements Tracker.
func (s *FileStore) GetRun(_ context.Context, runID string) (*Run, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	var m runMeta
	if err := readYAML(filepath.Join(dir, "meta.yaml"), &m); err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	return &Run{ID: m.RunID, ExperimentID: m.ExperimentID, ArtifactURI: m.ArtifactURI, Status: statusFromCode(m.Status)}, nil
}

func writeValue(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(value), 0644)
}

// LogParam implements Tracker.
func (s *FileStore) LogParam(_ context.Context, runID, key, value string) error {
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}
	return writeValue(filepath.Join(dir, "params", key), value)
}

// LogMetric implements Tracker. Values are appended so repeated logs keep
// their history.
func (s *FileStore) LogMetric(_ context.Context, runID, key string, value float64) error {
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(dir, "metrics", key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%d %s 0\n", nowMillis(), strconv.FormatFloat(value, 'g', -1, 64)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EndRun implements Tracker.
func (s *FileStore) EndRun(_ context.Context, runID string, status RunStatus) error {
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(dir, "meta.yaml")
	var m runMeta
	if err := readYAML(path, &m); err != nil {
		return err
	}
	end := nowMillis()
	m.EndTime = &end
	m.Status = statusCodes[status]
	return writeYAML(path, m)
}

// LogArtifact implements Tracker.
func (s *FileStore) LogArtifact(_ context.Context, run *Run, path string, data []byte) error {
	dir, err := s.runDir(run.ID)
	if err != nil {
		return err
	}
	dst := filepath.Join(dir, "artifacts", filepath.FromSlash(path))
	if !strings.HasPrefix(dst, filepath.Join(dir, "artifacts")+string(filepath.Separator)) {
		return fmt.Errorf("artifact path %q escapes the run directory", path)
	}
	return writeValue(dst, string(data))
}

// RecordModel implements Tracker by appending to the mlflow.log-model.history
// tag, which holds a JSON list of descriptors.
func (s *FileStore) RecordModel(_ context.Context, run *Run, modelJSON string) error {
	dir, err := s.runDir(run.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(dir, "tags", "mlflow.log-model.history")
	prev, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	history := "[" + modelJSON + "]"
	if trimmed := strings.TrimSpace(string(prev)); len(trimmed) > 2 {
		history = strings.TrimSuffix(trimmed, "]") + ", " + modelJSON + "]"
	}
	return writeValue(path, history)
}

type registeredModelMeta struct {
	CreationTime   int64  `yaml:"creation_timestamp"`
	LastUpdateTime int64  `yaml:"last_updated_timestamp"`
	Name           string `yaml:"name"`
}

type modelVersionMeta struct {
	CreationTime   int64  `yaml:"creation_timestamp"`
	CurrentStage   string `yaml:"current_stage"`
	LastUpdateTime int64  `yaml:"last_updated_timestamp"`
	Name           string `yaml:"name"`
	RunID          string `yaml:"run_id"`
	Source         string `yaml:"source"`
	Status         string `yaml:"status"`
	Version        int    `yaml:"version"`
}

// RegisterModel implements Tracker.
func (s *FileStore) RegisterModel(_ context.Context, name string, run *Run, source string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid model name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.Root, modelsDir, name)
	now := nowMillis()
	metaPath := filepath.Join(dir, "meta.yaml")
	if _, err := os.Stat(metaPath); errors.Is(err, fs.ErrNotExist) {
		if err := writeYAML(metaPath, registeredModelMeta{CreationTime: now, LastUpdateTime: now, Name: name}); err != nil {
			return "", err
		}
	}

	versions, err := filepath.Glob(filepath.Join(dir, "version-*"))
	if err != nil {
		return "", err
	}
	next := 1
	for _, v := range versions {
		if n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(v), "version-")); err == nil && n >= next {
			next = n + 1
		}
	}
	mv := modelVersionMeta{
		CreationTime:   now,
		CurrentStage:   "None",
		LastUpdateTime: now,
		Name:           name,
		RunID:          run.ID,
		Source:         source,
		Status:         "READY",
		Version:        next,
	}
	if err := writeYAML(filepath.Join(dir, fmt.Sprintf("version-%d", next), "meta.yaml"), mv); err != nil {
		return "", err
	}
	return strconv.Itoa(next), nil
}
