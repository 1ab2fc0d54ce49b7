package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Model names a supported model family.
type Model string

// Dataset names a supported relatedness dataset.
type Dataset string

// FrequencySource names the corpus used for word frequency estimation.
type FrequencySource string

const (
	ModelSIF Model = "sif"

	DatasetSICK Dataset = "sick"

	FrequencyTrain  FrequencySource = "train"
	FrequencyEnwiki FrequencySource = "enwiki"
)

var (
	ErrUnknownModel           = errors.New("unrecognized model")
	ErrUnknownDataset         = errors.New("unrecognized dataset")
	ErrUnknownFrequencySource = errors.New("unrecognized frequency dataset")
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Model                  Model           `yaml:"model"`
	Dataset                Dataset         `yaml:"dataset"`
	DataDir                string          `yaml:"data_dir"`
	Embeddings             string          `yaml:"embeddings"`
	FrequencyFile          string          `yaml:"frequency_file"`
	BatchSize              int             `yaml:"batch_size"`
	Epochs                 int             `yaml:"epochs"`
	LR                     float64         `yaml:"lr"`
	WeightDecay            float64         `yaml:"weight_decay"`
	Seed                   int64           `yaml:"seed"`
	Device                 int             `yaml:"device"`
	Unsupervised           bool            `yaml:"unsupervised"`
	Alpha                  float64         `yaml:"alpha"`
	RemoveSpecialDirection bool            `yaml:"remove_special_direction"`
	FrequencyDataset       FrequencySource `yaml:"frequency_dataset"`
	HiddenSize             int             `yaml:"hidden_size"`
	LogInterval            int             `yaml:"log_interval"`
	Workers                int             `yaml:"workers"`
	DB                     string          `yaml:"db"`
}

// Overrides captures CLI supplied values. Nil fields were not set.
type Overrides struct {
	Model                  *string
	Dataset                *string
	DataDir                *string
	Embeddings             *string
	FrequencyFile          *string
	BatchSize              *int
	Epochs                 *int
	LR                     *float64
	WeightDecay            *float64
	Seed                   *int64
	Device                 *int
	Unsupervised           *bool
	Alpha                  *float64
	RemoveSpecialDirection *bool
	FrequencyDataset       *string
	HiddenSize             *int
	LogInterval            *int
	Workers                *int
	DB                     *string
}

// Default returns the configuration used when no file or flag says otherwise.
func Default() *Config {
	return &Config{
		Model:                  ModelSIF,
		Dataset:                DatasetSICK,
		DataDir:                "data/sick",
		Embeddings:             "data/glove/glove.840B.300d.txt",
		FrequencyFile:          "data/enwiki_vocab_min200.txt",
		BatchSize:              64,
		Epochs:                 15,
		LR:                     2e-4,
		WeightDecay:            3e-4,
		Seed:                   1234,
		Device:                 0,
		Alpha:                  1e-3,
		RemoveSpecialDirection: true,
		FrequencyDataset:       FrequencyEnwiki,
		HiddenSize:             150,
		LogInterval:            1000,
		Workers:                2,
	}
}

// Load reads a YAML config on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config on top of the defaults without validating
// it, so that overrides can still be applied.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using every override that was set.
func (c *Config) ApplyOverrides(o Overrides) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}

	if o.Model != nil {
		c.Model = Model(*o.Model)
	}
	if o.Dataset != nil {
		c.Dataset = Dataset(*o.Dataset)
	}
	if o.FrequencyDataset != nil {
		c.FrequencyDataset = FrequencySource(*o.FrequencyDataset)
	}
	setString(&c.DataDir, o.DataDir)
	setString(&c.Embeddings, o.Embeddings)
	setString(&c.FrequencyFile, o.FrequencyFile)
	setString(&c.DB, o.DB)
	setInt(&c.BatchSize, o.BatchSize)
	setInt(&c.Epochs, o.Epochs)
	setInt(&c.Device, o.Device)
	setInt(&c.HiddenSize, o.HiddenSize)
	setInt(&c.LogInterval, o.LogInterval)
	setInt(&c.Workers, o.Workers)
	setFloat(&c.LR, o.LR)
	setFloat(&c.WeightDecay, o.WeightDecay)
	setFloat(&c.Alpha, o.Alpha)
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.Unsupervised != nil {
		c.Unsupervised = *o.Unsupervised
	}
	if o.RemoveSpecialDirection != nil {
		c.RemoveSpecialDirection = *o.RemoveSpecialDirection
	}
}

// Validate verifies the config is runnable and normalizes the variant names.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	ds, err := ParseDataset(string(c.Dataset))
	if err != nil {
		return err
	}
	c.Dataset = ds

	m, err := ParseModel(string(c.Model))
	if err != nil {
		return err
	}
	c.Model = m

	fs, err := ParseFrequencySource(string(c.FrequencyDataset))
	if err != nil {
		return err
	}
	c.FrequencyDataset = fs

	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.LR <= 0 {
		return errors.Errorf("lr must be > 0 (got %g)", c.LR)
	}
	if c.WeightDecay < 0 {
		return errors.Errorf("weight_decay must be >= 0 (got %g)", c.WeightDecay)
	}
	if c.Alpha <= 0 {
		return errors.Errorf("alpha must be > 0 (got %g)", c.Alpha)
	}
	if c.HiddenSize <= 0 {
		return errors.Errorf("hidden_size must be > 0 (got %d)", c.HiddenSize)
	}
	if c.Device < -1 {
		return errors.Errorf("device must be -1 or a device index (got %d)", c.Device)
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Embeddings == "" {
		return errors.New("embeddings must be set")
	}
	if c.FrequencyDataset == FrequencyEnwiki && c.FrequencyFile == "" {
		return errors.New("frequency_file must be set when frequency_dataset is enwiki")
	}
	if c.LogInterval <= 0 {
		c.LogInterval = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}

// ParseDataset resolves a dataset name.
func ParseDataset(name string) (Dataset, error) {
	switch Dataset(normalize(name)) {
	case DatasetSICK:
		return DatasetSICK, nil
	}
	return "", errors.Wrapf(ErrUnknownDataset, "dataset %q", name)
}

// ParseModel resolves a model family name.
func ParseModel(name string) (Model, error) {
	switch Model(normalize(name)) {
	case ModelSIF:
		return ModelSIF, nil
	}
	return "", errors.Wrapf(ErrUnknownModel, "model %q", name)
}

// ParseFrequencySource resolves the word frequency corpus name.
func ParseFrequencySource(name string) (FrequencySource, error) {
	switch FrequencySource(normalize(name)) {
	case FrequencyTrain:
		return FrequencyTrain, nil
	case FrequencyEnwiki:
		return FrequencyEnwiki, nil
	}
	return "", errors.Wrapf(ErrUnknownFrequencySource, "frequency dataset %q", name)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
