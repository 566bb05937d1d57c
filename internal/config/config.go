package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Notification backends.
const (
	NotifyPubSub = "pubsub"
	NotifyKafka  = "kafka"
)

// Config holds all service settings, populated from environment variables.
// Pipeline-specific settings are only validated when that pipeline runs.
type Config struct {
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	LogFile           string
	ShutdownTimeout   time.Duration
	InvocationTimeout time.Duration

	// Warehouse.
	ProjectID      string
	Location       string
	Dataset        string
	LoadJobTimeout time.Duration

	// Shared extraction window, dd.mm.yyyy.
	StartDate string
	EndDate   string

	HTTPTimeout      time.Duration
	FetchConcurrency int

	// Notification.
	NotifyBackend string
	NotifyTimeout time.Duration
	KafkaBrokers  []string

	Blob     BlobConfig
	Rates    RatesConfig
	Weather  WeatherConfig
	Trips    TripsConfig
	Enriched EnrichedConfig
}

// BlobConfig configures the bike catalogue pipeline.
type BlobConfig struct {
	SASURL string
	Table  string
	// MaxErrorPercent is required for this pipeline; nil means unset.
	MaxErrorPercent *float64
	Topic           string
}

// RatesConfig configures the CNB exchange-rate pipeline.
type RatesConfig struct {
	BaseURL         string
	Currency        string
	Table           string
	MaxErrorPercent float64
	Topic           string
}

// WeatherConfig configures the weather pipeline. BaseURL is a template with
// {start_date}, {end_date} and {api_key} placeholders.
type WeatherConfig struct {
	BaseURL         string
	APIKey          string
	Table           string
	MaxErrorPercent float64
	Topic           string
}

// TripsConfig configures the public-dataset bridge.
type TripsConfig struct {
	SourceProject      string
	SourceDataset      string
	SourceTripTable    string
	SourceStationTable string
	SourceLocation     string
	Bucket             string
	Table              string
	MaxBadRecords      int64
	BikeType           string
}

// EnrichedConfig configures the enriched output table.
type EnrichedConfig struct {
	OutputDataset string
	Table         string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	invocationTimeout, err := parseDuration("INVOCATION_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	loadJobTimeout, err := parseDuration("LOAD_JOB_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := parseDuration("NOTIFY_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	concurrency, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_CONCURRENCY", "1"))
	if err != nil || concurrency < 1 || concurrency > 16 {
		return nil, errors.New("invalid FETCH_CONCURRENCY: must be between 1 and 16")
	}

	var blobPercent *float64
	if os.Getenv("MAX_ERROR_PERCENT") != "" {
		p, err := parsePercent("MAX_ERROR_PERCENT", "")
		if err != nil {
			return nil, err
		}
		blobPercent = &p
	}
	ratesPercent, err := parsePercent("RATES_MAX_ERROR_PERCENT", "0")
	if err != nil {
		return nil, err
	}
	weatherPercent, err := parsePercent("WEATHER_MAX_ERROR_PERCENT", "0")
	if err != nil {
		return nil, err
	}

	maxBadRecords, err := strconv.ParseInt(sharedcfg.EnvOrDefault("TRIPS_MAX_BAD_RECORDS", "1000"), 10, 64)
	if err != nil || maxBadRecords < 0 {
		return nil, errors.New("invalid TRIPS_MAX_BAD_RECORDS")
	}

	cfg := &Config{
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogFile:           os.Getenv("LOG_FILE"),
		ShutdownTimeout:   shutdownTimeout,
		InvocationTimeout: invocationTimeout,

		ProjectID:      os.Getenv("PROJECT_ID"),
		Location:       sharedcfg.EnvOrDefault("BIGQUERY_LOCATION", "europe-west3"),
		Dataset:        os.Getenv("BIGQUERY_DATASET_ID"),
		LoadJobTimeout: loadJobTimeout,

		StartDate: os.Getenv("START_DATE"),
		EndDate:   os.Getenv("END_DATE"),

		HTTPTimeout:      httpTimeout,
		FetchConcurrency: concurrency,

		NotifyBackend: strings.ToLower(sharedcfg.EnvOrDefault("NOTIFY_BACKEND", NotifyPubSub)),
		NotifyTimeout: notifyTimeout,
		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),

		Blob: BlobConfig{
			SASURL:          os.Getenv("AZURE_BLOB_SAS_URL"),
			Table:           sharedcfg.EnvOrDefault("BLOB_TABLE_ID", "bikes_data"),
			MaxErrorPercent: blobPercent,
			Topic:           os.Getenv("TOPIC_NAME"),
		},
		Rates: RatesConfig{
			BaseURL:         os.Getenv("BASE_CNB_URL"),
			Currency:        strings.ToUpper(sharedcfg.EnvOrDefault("CURRENCY", "EUR")),
			Table:           sharedcfg.EnvOrDefault("RATES_TABLE_ID", "devizova_data"),
			MaxErrorPercent: ratesPercent,
			Topic:           os.Getenv("RATES_TOPIC_NAME"),
		},
		Weather: WeatherConfig{
			BaseURL:         os.Getenv("BASE_WEATHER_URL"),
			APIKey:          os.Getenv("API_KEY"),
			Table:           sharedcfg.EnvOrDefault("WEATHER_TABLE_ID", "weather_data"),
			MaxErrorPercent: weatherPercent,
			Topic:           os.Getenv("WEATHER_TOPIC_NAME"),
		},
		Trips: TripsConfig{
			SourceProject:      sharedcfg.EnvOrDefault("SOURCE_PROJECT_ID", "bigquery-public-data"),
			SourceDataset:      sharedcfg.EnvOrDefault("SOURCE_DATASET_ID", "austin_bikeshare"),
			SourceTripTable:    sharedcfg.EnvOrDefault("SOURCE_TRIP_TABLE_ID", "bikeshare_trips"),
			SourceStationTable: sharedcfg.EnvOrDefault("SOURCE_STATION_TABLE_ID", "bikeshare_stations"),
			SourceLocation:     sharedcfg.EnvOrDefault("SOURCE_LOCATION", "US"),
			Bucket:             os.Getenv("BUCKET_NAME"),
			Table:              sharedcfg.EnvOrDefault("TRIPS_TABLE_ID", "bike_trips"),
			MaxBadRecords:      maxBadRecords,
			BikeType:           sharedcfg.EnvOrDefault("TRIPS_BIKE_TYPE", "electric"),
		},
		Enriched: EnrichedConfig{
			OutputDataset: os.Getenv("BIGQUERY_OZ_DATASET_ID"),
			Table:         sharedcfg.EnvOrDefault("ENRICHED_TABLE_ID", "enriched_trips"),
		},
	}

	if cfg.NotifyBackend != NotifyPubSub && cfg.NotifyBackend != NotifyKafka {
		return nil, fmt.Errorf("invalid NOTIFY_BACKEND %q: must be %s or %s", cfg.NotifyBackend, NotifyPubSub, NotifyKafka)
	}
	if cfg.NotifyBackend == NotifyKafka && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when NOTIFY_BACKEND is kafka")
	}

	return cfg, nil
}

// ValidateWarehouse checks the settings every pipeline needs.
func (c *Config) ValidateWarehouse() error {
	return requireSet(
		"PROJECT_ID", c.ProjectID,
		"BIGQUERY_DATASET_ID", c.Dataset,
	)
}

// ValidateBlob checks the settings of the bike catalogue pipeline.
func (c *Config) ValidateBlob() error {
	if err := c.ValidateWarehouse(); err != nil {
		return err
	}
	if err := requireSet(
		"AZURE_BLOB_SAS_URL", c.Blob.SASURL,
		"TOPIC_NAME", c.Blob.Topic,
	); err != nil {
		return err
	}
	if c.Blob.MaxErrorPercent == nil {
		return errors.New("MAX_ERROR_PERCENT is required")
	}
	return nil
}

// ValidateRates checks the settings of the exchange-rate pipeline.
func (c *Config) ValidateRates() error {
	if err := c.ValidateWarehouse(); err != nil {
		return err
	}
	return requireSet(
		"START_DATE", c.StartDate,
		"END_DATE", c.EndDate,
		"BASE_CNB_URL", c.Rates.BaseURL,
		"CURRENCY", c.Rates.Currency,
	)
}

// ValidateWeather checks the settings of the weather pipeline.
func (c *Config) ValidateWeather() error {
	if err := c.ValidateWarehouse(); err != nil {
		return err
	}
	return requireSet(
		"START_DATE", c.StartDate,
		"END_DATE", c.EndDate,
		"BASE_WEATHER_URL", c.Weather.BaseURL,
		"API_KEY", c.Weather.APIKey,
	)
}

// ValidateTrips checks the settings of the public-dataset bridge.
func (c *Config) ValidateTrips() error {
	if err := c.ValidateWarehouse(); err != nil {
		return err
	}
	return requireSet(
		"START_DATE", c.StartDate,
		"END_DATE", c.EndDate,
		"BUCKET_NAME", c.Trips.Bucket,
		"SOURCE_PROJECT_ID", c.Trips.SourceProject,
		"SOURCE_DATASET_ID", c.Trips.SourceDataset,
	)
}

// ValidateEnriched checks the settings of the enriched table.
func (c *Config) ValidateEnriched() error {
	if err := c.ValidateWarehouse(); err != nil {
		return err
	}
	return requireSet("BIGQUERY_OZ_DATASET_ID", c.Enriched.OutputDataset)
}

// requireSet takes name/value pairs and reports the first empty value.
func requireSet(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%s is required", pairs[i])
		}
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parsePercent reads a percentage in [0, 100].
func parsePercent(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("invalid %s: must be a number between 0 and 100", key)
	}
	return v, nil
}
