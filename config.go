package sacoprep

// Pipeline configuration. Every component receives its settings as explicit
// values from here; there is no process-global state.

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SplitConfig controls the stratified train/validation split.
type SplitConfig struct {
	TrainRatio float64 `yaml:"train_ratio"`
	Seed       int64   `yaml:"seed"`
}

// Config holds all pipeline settings. Directory fields are relative to
// DataRoot; PositiveDir and NegativeDir are subdirectories of ImagesDir.
type Config struct {
	DataRoot    string `yaml:"data_root"`
	ImagesDir   string `yaml:"images_dir"`
	PositiveDir string `yaml:"positive_dir"`
	NegativeDir string `yaml:"negative_dir"`
	LabelsDir   string `yaml:"labels_dir"`
	ClassesFile string `yaml:"classes_file"`

	// ClassPrompt is the fixed text_input attached to every image record.
	ClassPrompt string         `yaml:"class_prompt"`
	Category    CategoryRecord `yaml:"category"`

	Synonyms          map[string]string `yaml:"synonyms"`
	AmbiguousPatterns []string          `yaml:"ambiguous_patterns"`

	Split SplitConfig `yaml:"split"`
}

// DefaultConfig returns the built-in settings for the chicken detection
// corpus layout.
func DefaultConfig() Config {
	return Config{
		DataRoot:          "./data",
		ImagesDir:         "raw_data/images",
		PositiveDir:       "chicken",
		NegativeDir:       "not_chicken",
		LabelsDir:         "raw_data/labels",
		ClassesFile:       "raw_data/classes.txt",
		ClassPrompt:       "chicken",
		Category:          CategoryRecord{ID: 1, Name: "chicken"},
		Synonyms:          DefaultSynonyms(),
		AmbiguousPatterns: DefaultAmbiguousPatterns(),
		Split:             SplitConfig{TrainRatio: 0.8, Seed: 42},
	}
}

// LoadConfig reads a YAML file and overlays it on the defaults. Fields absent
// from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	enc, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config %q: %v", path, err)
	}
	if err := yaml.Unmarshal(enc, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %v", path, err)
	}

	if cfg.Split.TrainRatio <= 0 || cfg.Split.TrainRatio >= 1 {
		return cfg, fmt.Errorf("invalid train_ratio %v, must be in (0,1)", cfg.Split.TrainRatio)
	}

	return cfg, nil
}

// ImagesPath is the flat images root directory.
func (c Config) ImagesPath() string {
	return filepath.Join(c.DataRoot, c.ImagesDir)
}

// PositivePath is the positive-class image directory.
func (c Config) PositivePath() string {
	return filepath.Join(c.DataRoot, c.ImagesDir, c.PositiveDir)
}

// NegativePath is the negative-class image directory.
func (c Config) NegativePath() string {
	return filepath.Join(c.DataRoot, c.ImagesDir, c.NegativeDir)
}

// LabelsPath is the annotation source directory.
func (c Config) LabelsPath() string {
	return filepath.Join(c.DataRoot, c.LabelsDir)
}

// ClassesPath is the optional YOLO class-name file.
func (c Config) ClassesPath() string {
	return filepath.Join(c.DataRoot, c.ClassesFile)
}
