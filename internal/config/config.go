package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"github.com/23skdu/longbow-corpus/internal/dataset"
)

// EnvPrefix prefixes environment overrides, e.g. CORPUS_SPLIT_SEED.
const EnvPrefix = "CORPUS"

// Input formats. FormatAuto picks a loader from the file extension.
const (
	FormatAuto    = "auto"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
	FormatArrow   = "arrow"
)

// Config stores all configuration of a preparation run.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Split     SplitConfig     `mapstructure:"split"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Trainer   TrainerConfig   `mapstructure:"trainer"`
	Output    OutputConfig    `mapstructure:"output"`
	Flight    FlightConfig    `mapstructure:"flight"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DatasetConfig describes the raw corpus.
type DatasetConfig struct {
	Name   string   `mapstructure:"name"`
	Inputs []string `mapstructure:"inputs"`
	// Exclude holds gitignore-style patterns removed from the expanded inputs.
	Exclude   []string `mapstructure:"exclude"`
	TextField string   `mapstructure:"text_field"`
	Format    string   `mapstructure:"format"`
	Normalize bool     `mapstructure:"normalize"`
	Workers   int      `mapstructure:"workers"`
}

type SplitConfig struct {
	HeldOutFraction float64 `mapstructure:"held_out_fraction"`
	Seed            int64   `mapstructure:"seed"`
}

// TokenizerConfig names where the end-of-sequence marker comes from.
type TokenizerConfig struct {
	EOSToken      *string `mapstructure:"eos_token"`
	GGUF          string  `mapstructure:"gguf"`
	OllamaModel   string  `mapstructure:"ollama_model"`
	OllamaDir     string  `mapstructure:"ollama_dir"`
	ConfigPath    string  `mapstructure:"config_path"`
	TokenizerJSON string  `mapstructure:"tokenizer_json"`
}

// TrainerConfig is passed through to the external trainer.
type TrainerConfig struct {
	DatasetTextField string `mapstructure:"dataset_text_field"`
	MaxSeqLength     int    `mapstructure:"max_seq_length"`
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	Format      string `mapstructure:"format"`
	KeepHeldOut bool   `mapstructure:"keep_held_out"`
}

// FlightConfig enables publishing the training split to an Arrow Flight
// endpoint when Addr is set.
type FlightConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the settings of the reference cybersecurity run.
func Default() Config {
	return Config{
		Dataset: DatasetConfig{
			Name:      "cybersec",
			TextField: "text",
			Format:    FormatAuto,
			Workers:   4,
		},
		Split: SplitConfig{
			HeldOutFraction: 0.995,
			Seed:            3407,
		},
		Trainer: TrainerConfig{
			DatasetTextField: "text_custom",
			MaxSeqLength:     2048,
		},
		Output: OutputConfig{
			Dir:    "out",
			Format: FormatJSONL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("dataset.name", d.Dataset.Name)
	v.SetDefault("dataset.inputs", []string{})
	v.SetDefault("dataset.exclude", []string{})
	v.SetDefault("dataset.text_field", d.Dataset.TextField)
	v.SetDefault("dataset.format", d.Dataset.Format)
	v.SetDefault("dataset.normalize", d.Dataset.Normalize)
	v.SetDefault("dataset.workers", d.Dataset.Workers)
	v.SetDefault("split.held_out_fraction", d.Split.HeldOutFraction)
	v.SetDefault("split.seed", d.Split.Seed)
	v.SetDefault("tokenizer.gguf", "")
	v.SetDefault("tokenizer.ollama_model", "")
	v.SetDefault("tokenizer.ollama_dir", "")
	v.SetDefault("tokenizer.config_path", "")
	v.SetDefault("tokenizer.tokenizer_json", "")
	v.SetDefault("trainer.dataset_text_field", d.Trainer.DatasetTextField)
	v.SetDefault("trainer.max_seq_length", d.Trainer.MaxSeqLength)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.keep_held_out", d.Output.KeepHeldOut)
	v.SetDefault("flight.addr", "")
	v.SetDefault("flight.path", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.addr", "")
}

// New returns a viper instance with defaults and environment overrides
// registered. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// eos_token has no default; bind it so CORPUS_TOKENIZER_EOS_TOKEN is seen.
	_ = v.BindEnv("tokenizer.eos_token")
	return v
}

// Load reads configPath (optional) into v and decodes the result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

// LoadFile is Load with a fresh viper instance.
func LoadFile(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Dataset.Inputs) == 0 {
		errs = append(errs, fmt.Errorf("invalid dataset.inputs: no input files"))
	}
	if strings.TrimSpace(c.Dataset.TextField) == "" {
		errs = append(errs, fmt.Errorf("invalid dataset.text_field: must not be empty"))
	}
	switch c.Dataset.Format {
	case FormatAuto, FormatJSONL, FormatParquet, FormatArrow:
	default:
		errs = append(errs, fmt.Errorf("invalid dataset.format: %q", c.Dataset.Format))
	}
	if c.Dataset.Workers < 1 {
		errs = append(errs, fmt.Errorf("invalid dataset.workers: %d (must be positive)", c.Dataset.Workers))
	}
	if f := c.Split.HeldOutFraction; math.IsNaN(f) || f <= 0 || f >= 1 {
		errs = append(errs, fmt.Errorf("invalid split.held_out_fraction: %v (must be in (0,1))", f))
	}
	if strings.TrimSpace(c.Trainer.DatasetTextField) == "" {
		errs = append(errs, fmt.Errorf("invalid trainer.dataset_text_field: must not be empty"))
	}
	if err := dataset.CheckOutputField(c.Trainer.DatasetTextField); err != nil {
		errs = append(errs, fmt.Errorf("invalid trainer.dataset_text_field: %w", err))
	}
	if c.Trainer.MaxSeqLength <= 0 {
		errs = append(errs, fmt.Errorf("invalid trainer.max_seq_length: %d (must be positive)", c.Trainer.MaxSeqLength))
	}
	switch c.Output.Format {
	case FormatJSONL, FormatParquet, FormatArrow:
	default:
		errs = append(errs, fmt.Errorf("invalid output.format: %q", c.Output.Format))
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, fmt.Errorf("invalid output.dir: must not be empty"))
	}
	if !c.HasEOSSource() {
		errs = append(errs, fmt.Errorf("invalid tokenizer: one of eos_token, gguf, ollama_model or config_path is required"))
	}
	return errors.Join(errs...)
}

// HasEOSSource reports whether any end-of-sequence marker source is set.
func (c *Config) HasEOSSource() bool {
	t := c.Tokenizer
	return t.EOSToken != nil || t.GGUF != "" || t.OllamaModel != "" || t.ConfigPath != ""
}

// FlightPath is the descriptor path the training split is published under.
func (c *Config) FlightPath() string {
	if c.Flight.Path != "" {
		return c.Flight.Path
	}
	return c.Dataset.Name + "/train"
}
