package fraud

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/synthdata/internal/forest"
)

// ModelPrefix starts every model file name.
const ModelPrefix = "fraud_detection_model_"

// ErrNoModel is returned when no trained model exists.
var ErrNoModel = errors.New("no trained model found")

// Artifact is a trained classifier with the feature layout it expects.
type Artifact struct {
	RunID        string         `json:"run_id"`
	CreatedAt    time.Time      `json:"created_at"`
	FeatureNames []string       `json:"feature_names"`
	Categories   []string       `json:"categories"`
	TrainRows    int            `json:"train_rows"`
	TestRows     int            `json:"test_rows"`
	Forest       *forest.Forest `json:"forest"`
}

var runIDReplacer = strings.NewReplacer(":", "-", "+", "_", "/", "_")

// SanitizeRunID makes a scheduler run id safe for a file name.
func SanitizeRunID(runID string) string {
	return runIDReplacer.Replace(runID)
}

// ModelFileName returns the artifact file name for runID.
func ModelFileName(runID string) string {
	return ModelPrefix + SanitizeRunID(runID) + ".json"
}

// ModelStore keeps one artifact file per training run in a directory.
type ModelStore struct {
	dir string
}

func NewModelStore(dir string) *ModelStore {
	return &ModelStore{dir: dir}
}

// Dir returns the model directory.
func (m *ModelStore) Dir() string { return m.dir }

// Save writes a and returns its path. An existing file for the same run is
// replaced.
func (m *ModelStore) Save(a *Artifact) (string, error) {
	if a.Forest == nil {
		return "", errors.New("artifact has no forest")
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating model dir: %w", err)
	}
	path := filepath.Join(m.dir, ModelFileName(a.RunID))
	tmp, err := os.CreateTemp(m.dir, ".model-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(a); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encoding model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("saving model: %w", err)
	}
	return path, nil
}

// Load reads the artifact at path.
func (m *ModelStore) Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoModel, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening model: %w", err)
	}
	defer f.Close()

	var a Artifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding model %s: %w", path, err)
	}
	if a.Forest == nil || len(a.FeatureNames) == 0 {
		return nil, fmt.Errorf("model %s is incomplete", path)
	}
	return &a, nil
}

// Latest returns the path of the most recently modified model file.
func (m *ModelStore) Latest() (string, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoModel
	}
	if err != nil {
		return "", fmt.Errorf("listing models: %w", err)
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ModelPrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if best == "" || mod.After(bestMod) || (mod.Equal(bestMod) && name > best) {
			best, bestMod = name, mod
		}
	}
	if best == "" {
		return "", ErrNoModel
	}
	return filepath.Join(m.dir, best), nil
}

// LoadLatest loads the most recent model and returns it with its path.
func (m *ModelStore) LoadLatest() (*Artifact, string, error) {
	path, err := m.Latest()
	if err != nil {
		return nil, "", err
	}
	a, err := m.Load(path)
	if err != nil {
		return nil, "", err
	}
	return a, path, nil
}
