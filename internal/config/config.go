package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
)

// DefaultSensors is the FIRMS sensor fetch order for each date.
var DefaultSensors = []string{"MODIS_SP", "VIIRS_NOAA20_NRT", "VIIRS_NOAA21_NRT", "VIIRS_SNPP_SP"}

// CredentialsFileName is the per-user API key file created in the home directory.
const CredentialsFileName = ".firms_data_config.json"

// Config holds all run settings, populated from environment variables.
type Config struct {
	// FIRMS area API.
	FIRMSBaseURL       string
	FIRMSAPIKey        string
	FIRMSSensors       []string
	FIRMSRetryAttempts int
	FIRMSRetryDelay    time.Duration
	FIRMSTimeout       time.Duration

	// OSM services.
	NominatimBaseURL string
	NominatimTimeout time.Duration
	OverpassBaseURL  string
	OverpassTimeout  time.Duration
	UserAgent        string
	Tags             domain.TagFilter

	// Clustering and normalization.
	GridSizeKm          float64
	BBoxBufferMeters    float64
	FeatureBufferMeters float64

	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	ShutdownTimeout time.Duration

	// Optional association sink. Publishing is enabled when KafkaTopic is set.
	KafkaBrokers []string
	KafkaTopic   string

	CredentialsPath string
}

// KafkaEnabled reports whether association rows should be published.
func (c *Config) KafkaEnabled() bool {
	return c.KafkaTopic != ""
}

// ClusterOptions returns the grid settings as domain options.
func (c *Config) ClusterOptions() domain.ClusterOptions {
	return domain.ClusterOptions{BufferMeters: c.BBoxBufferMeters, GridSizeKm: c.GridSizeKm}
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	attempts, err := parsePositiveInt("FIRMS_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("FIRMS_RETRY_DELAY", "60s", true)
	if err != nil {
		return nil, err
	}
	firmsTimeout, err := parseDuration("FIRMS_TIMEOUT", "120s", false)
	if err != nil {
		return nil, err
	}
	nominatimTimeout, err := parseDuration("NOMINATIM_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}
	overpassTimeout, err := parseDuration("OVERPASS_TIMEOUT", "180s", false)
	if err != nil {
		return nil, err
	}
	gridKm, err := parsePositiveFloat("GRID_SIZE_KM", domain.DefaultGridSizeKm, false)
	if err != nil {
		return nil, err
	}
	bboxBuffer, err := parsePositiveFloat("BBOX_BUFFER_M", domain.DefaultBBoxBufferMeters, true)
	if err != nil {
		return nil, err
	}
	featureBuffer, err := parsePositiveFloat("FEATURE_BUFFER_M", domain.DefaultFeatureBufferMeters, false)
	if err != nil {
		return nil, err
	}

	tags := domain.DefaultTagFilter()
	if path := os.Getenv("OSM_TAGS_FILE"); path != "" {
		tags, err = LoadTagFilter(path)
		if err != nil {
			return nil, err
		}
	}

	credPath := os.Getenv("CREDENTIALS_PATH")
	if credPath == "" {
		credPath = defaultCredentialsPath()
	}

	cfg := &Config{
		FIRMSBaseURL:       strings.TrimRight(sharedcfg.EnvOrDefault("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov"), "/"),
		FIRMSAPIKey:        os.Getenv("FIRMS_API_KEY"),
		FIRMSSensors:       parseList(sharedcfg.EnvOrDefault("FIRMS_SENSORS", strings.Join(DefaultSensors, ","))),
		FIRMSRetryAttempts: attempts,
		FIRMSRetryDelay:    retryDelay,
		FIRMSTimeout:       firmsTimeout,

		NominatimBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"), "/"),
		NominatimTimeout: nominatimTimeout,
		OverpassBaseURL:  sharedcfg.EnvOrDefault("OVERPASS_BASE_URL", "https://overpass-api.de/api/interpreter"),
		OverpassTimeout:  overpassTimeout,
		UserAgent:        sharedcfg.EnvOrDefault("HTTP_USER_AGENT", "firexref/1.0"),
		Tags:             tags,

		GridSizeKm:          gridKm,
		BBoxBufferMeters:    bboxBuffer,
		FeatureBufferMeters: featureBuffer,

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   os.Getenv("KAFKA_TOPIC"),

		CredentialsPath: credPath,
	}

	if len(cfg.FIRMSSensors) == 0 {
		return nil, errors.New("FIRMS_SENSORS must name at least one sensor")
	}
	if cfg.UserAgent == "" {
		return nil, errors.New("HTTP_USER_AGENT is required")
	}
	if cfg.KafkaEnabled() && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_TOPIC is set but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

// LoadTagFilter reads a YAML tag filter of the form
//
//	tags:
//	  building: []
//	  landuse: [forest, farmland]
//
// An empty value list matches any value of the key.
func LoadTagFilter(path string) (domain.TagFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read OSM_TAGS_FILE: %w", err)
	}
	var doc struct {
		Tags map[string][]string `yaml:"tags"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse OSM_TAGS_FILE %s: %w", path, err)
	}
	if len(doc.Tags) == 0 {
		return nil, fmt.Errorf("OSM_TAGS_FILE %s defines no tags", path)
	}
	return domain.TagFilter(doc.Tags), nil
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return CredentialsFileName
	}
	return filepath.Join(home, CredentialsFileName)
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return n, nil
}

func parsePositiveFloat(name string, def float64, allowZero bool) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || (v == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

func parseDuration(name, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return d, nil
}
