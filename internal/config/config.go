package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pcmops/jobmetrics/internal/extract"
	"github.com/pcmops/jobmetrics/internal/report"
)

// ESConfig points the extractor at the metrics cluster. URL is the full
// search endpoint, e.g. https://venue/mozart_es/logstash-*/_search.
type ESConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Insecure bool          `mapstructure:"insecure"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ReportConfig controls the export step.
type ReportConfig struct {
	Format      string `mapstructure:"format"`
	OutputDir   string `mapstructure:"output_dir"`
	Rounding    int    `mapstructure:"rounding"`
	EstimateRef string `mapstructure:"estimate_ref"`
	ComputeType string `mapstructure:"compute_type"`
}

type Config struct {
	ES     ESConfig     `mapstructure:"es"`
	Report ReportConfig `mapstructure:"report"`
}

// flagBindings maps CLI flags onto config keys; flags win over the file and
// environment.
var flagBindings = map[string]string{
	"es.url":              "es_url",
	"report.format":       "format",
	"report.output_dir":   "output_dir",
	"report.estimate_ref": "estimate_ref",
	"report.compute_type": "compute_type",
}

// Load reads the optional YAML config file, JOBMETRICS_* environment
// overrides, and any bound CLI flags, in ascending precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Look for config in the current directory and ./config.
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	// Credentials usually arrive as JOBMETRICS_ES_USERNAME / _ES_PASSWORD.
	// AutomaticEnv only consults the environment for keys viper already
	// knows, so the credential keys are bound explicitly.
	v.SetEnvPrefix("JOBMETRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"es.url", "es.username", "es.password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", key)
		}
	}

	v.SetDefault("es.insecure", true)
	v.SetDefault("es.timeout", 60*time.Second)
	v.SetDefault("report.format", report.FormatXLSX)
	v.SetDefault("report.output_dir", ".")
	v.SetDefault("report.rounding", extract.DefaultRounding)
	v.SetDefault("report.compute_type", "Spot (avg)")

	if flags != nil {
		for key, flag := range flagBindings {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", flag)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch config.Report.Format {
	case report.FormatXLSX, report.FormatCSV:
	default:
		return nil, fmt.Errorf("unsupported report format %q (use %s or %s)",
			config.Report.Format, report.FormatXLSX, report.FormatCSV)
	}

	return &config, nil
}
