package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hackclub/slack-emoji-dl/internal/catalog"
	"github.com/hackclub/slack-emoji-dl/internal/model"
)

// EnvPrefix is prepended to setting keys when read from the environment,
// e.g. EMOJI_DL_CONCURRENT.
const EnvPrefix = "EMOJI_DL"

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	OutputDir         string  `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
	Concurrent        int     `json:"concurrent" yaml:"concurrent" mapstructure:"concurrent"`
	BatchSize         int     `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	SkipExisting      bool    `json:"skip_existing" yaml:"skip_existing" mapstructure:"skip_existing"`
	PipelineBatches   int     `json:"pipeline_batches" yaml:"pipeline_batches" mapstructure:"pipeline_batches"`
	MaxRetries        int     `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	RetryCooldown     float64 `json:"retry_cooldown" yaml:"retry_cooldown" mapstructure:"retry_cooldown"`
	RetryExponent     float64 `json:"retry_exponent" yaml:"retry_exponent" mapstructure:"retry_exponent"`
	VerifyImages      bool    `json:"verify_images" yaml:"verify_images" mapstructure:"verify_images"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Listing / HTTP
	APIURL         string `json:"api_url" yaml:"api_url" mapstructure:"api_url"`
	RequestTimeout int    `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"` // seconds
	UserAgent      string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Index settings
	CreateIndex bool   `json:"create_index" yaml:"create_index" mapstructure:"create_index"`
	IndexFormat string `json:"index_format" yaml:"index_format" mapstructure:"index_format"` // json, csv, md, html

	// Logging
	LogFile string `json:"log_file" yaml:"log_file" mapstructure:"log_file"` // "" for a timestamped file, "off" to disable
}

// LogFileDisabled as LogFile turns file logging off.
const LogFileDisabled = "off"

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		OutputDir:         "./output",
		Concurrent:        500,
		BatchSize:         5000,
		SkipExisting:      true,
		PipelineBatches:   1,
		MaxRetries:        3,
		RetryCooldown:     0.2,
		RetryExponent:     4.0,
		VerifyImages:      false,
		RequestsPerSecond: 0,

		APIURL:         "https://badger.hackclub.dev/api/emoji",
		RequestTimeout: 60,
		UserAgent:      "slack-emoji-dl",

		CreateIndex: false,
		IndexFormat: "json",

		LogFile: "",
	}
}

// DefaultConfigFile is read by Load when no path is given.
const DefaultConfigFile = "emoji-dl.yaml"

// Load reads settings from defaults, an optional config file and the environment.
//
// path may name a JSON, YAML or TOML file, which must exist. An empty path
// reads DefaultConfigFile from the working directory when there is one and
// keeps the defaults otherwise. Environment variables prefixed with
// EnvPrefix override both.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if explicit || !missing {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return settings, nil
}

// setDefaults registers every key so that AutomaticEnv and Unmarshal see it.
func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("concurrent", d.Concurrent)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("skip_existing", d.SkipExisting)
	v.SetDefault("pipeline_batches", d.PipelineBatches)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_cooldown", d.RetryCooldown)
	v.SetDefault("retry_exponent", d.RetryExponent)
	v.SetDefault("verify_images", d.VerifyImages)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("api_url", d.APIURL)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("create_index", d.CreateIndex)
	v.SetDefault("index_format", d.IndexFormat)
	v.SetDefault("log_file", d.LogFile)
}

// Save writes settings to path, as YAML for .yaml/.yml and JSON otherwise.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid setting at once.
func (s *Settings) Validate() error {
	var errs []error

	if s.Concurrent <= 0 {
		errs = append(errs, fmt.Errorf("concurrent must be positive, got %d", s.Concurrent))
	}
	if s.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", s.BatchSize))
	}
	if s.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", s.MaxRetries))
	}
	if s.PipelineBatches < 0 {
		errs = append(errs, fmt.Errorf("pipeline_batches must not be negative, got %d", s.PipelineBatches))
	}
	if s.RetryCooldown < 0 || s.RetryExponent < 1 {
		errs = append(errs, fmt.Errorf("retry_cooldown must be >= 0 and retry_exponent >= 1, got %g and %g", s.RetryCooldown, s.RetryExponent))
	}
	if s.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative, got %g", s.RequestsPerSecond))
	}
	if strings.TrimSpace(s.APIURL) == "" {
		errs = append(errs, errors.New("api_url must not be empty"))
	}
	if strings.TrimSpace(s.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if _, err := catalog.ParseFormat(s.IndexFormat); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{OutputDir: s.OutputDir}
}

// RetryBackoff returns the base cooldown and growth factor of the retry delay.
func (s *Settings) RetryBackoff() (time.Duration, float64) {
	return time.Duration(s.RetryCooldown * float64(time.Second)), s.RetryExponent
}

// RequestTimeoutDuration returns the per-request timeout.
func (s *Settings) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// LogFilePath returns the file the run logs to, or "" if file logging is off.
//
// An empty LogFile names download_<YYYYmmdd_HHMMSS>.log in the working
// directory, stamped with now.
func (s *Settings) LogFilePath(now time.Time) string {
	switch strings.TrimSpace(s.LogFile) {
	case LogFileDisabled:
		return ""
	case "":
		return "download_" + now.Format("20060102_150405") + ".log"
	}
	return s.LogFile
}

// CatalogFormat returns the parsed index format, JSON if it is unknown.
func (s *Settings) CatalogFormat() catalog.Format {
	f, err := catalog.ParseFormat(s.IndexFormat)
	if err != nil {
		return catalog.FormatJSON
	}
	return f
}
