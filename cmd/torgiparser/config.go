package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/nspd"
	"github.com/mishannn/torgiparser-go/internal/pipeline"
	"github.com/mishannn/torgiparser-go/internal/progress"
	"github.com/mishannn/torgiparser-go/internal/torgi"
)

type Config struct {
	Torgi struct {
		torgi.Options `yaml:",inline"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"torgi"`
	NSPD struct {
		BaseURL            string        `yaml:"base_url"`
		Timeout            time.Duration `yaml:"timeout"`
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	} `yaml:"nspd"`
	Enrichment pipeline.Options `yaml:"enrichment"`
	Refdata    struct {
		Dir string `yaml:"dir"`
	} `yaml:"refdata"`
	Telegram struct {
		Token string `yaml:"token"`
		Debug bool   `yaml:"debug"`
	} `yaml:"telegram"`
	Redis struct {
		Enabled  bool             `yaml:"enabled"`
		Address  string           `yaml:"address"`
		Password string           `yaml:"password"`
		DB       int              `yaml:"db"`
		Progress progress.Options `yaml:"progress"`
	} `yaml:"redis"`
	Database struct {
		Address  string `yaml:"address"`
		Database string `yaml:"database"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"database"`
	Sheets struct {
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		Range           string `yaml:"range"`
	} `yaml:"sheets"`
	Log    logger.Config `yaml:"log"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	Once struct {
		Subjects           []string `yaml:"subjects"`
		Statuses           []string `yaml:"statuses"`
		DateFrom           string   `yaml:"date_from"`
		DateTo             string   `yaml:"date_to"`
		ComputeCoordinates bool     `yaml:"compute_coordinates"`
	} `yaml:"once"`
}

func defaultConfig() *Config {
	config := &Config{}
	config.Torgi.Timeout = 30 * time.Second
	config.NSPD.BaseURL = nspd.DefaultBaseURL
	config.NSPD.Timeout = 30 * time.Second
	config.NSPD.InsecureSkipVerify = true
	config.Enrichment = pipeline.DefaultOptions()
	config.Refdata.Dir = "const_filters"
	config.Redis.Address = "localhost:6379"
	config.Sheets.Range = "A1"
	config.Log.Level = "info"
	config.Export.Dir = "data/results"
	return config
}

// newConfig reads the yaml file, then the optional env file, then applies environment overrides.
func newConfig(configPath, envPath string) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("can't open config file: %w", err)
	}
	defer file.Close()

	d := yaml.NewDecoder(file)

	if err := d.Decode(config); err != nil {
		return nil, fmt.Errorf("can't parse config file: %w", err)
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("can't load env file: %w", err)
		}
	}

	config.applyEnv()

	return config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"BOT_TOKEN":       &c.Telegram.Token,
		"REDIS_ADDR":      &c.Redis.Address,
		"REDIS_PASSWORD":  &c.Redis.Password,
		"CLICKHOUSE_ADDR": &c.Database.Address,
		"LOG_LEVEL":       &c.Log.Level,
	}

	for name, target := range overrides {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*target = value
		}
	}
}

// onceFilter builds the filter of the one-shot mode. Dates are YYYY-MM-DD in local time.
func (c *Config) onceFilter() (torgi.Filter, error) {
	dateFrom, err := parseDate(c.Once.DateFrom)
	if err != nil {
		return torgi.Filter{}, fmt.Errorf("can't parse date_from: %w", err)
	}

	dateTo, err := parseDate(c.Once.DateTo)
	if err != nil {
		return torgi.Filter{}, fmt.Errorf("can't parse date_to: %w", err)
	}

	return torgi.NewFilter(c.Once.Subjects, c.Once.Statuses, dateFrom, dateTo, c.Once.ComputeCoordinates)
}

func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation(time.DateOnly, value, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
