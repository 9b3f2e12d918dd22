/*
Package config loads the scraper configuration from defaults, a .env file and
the process environment.
*/
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"

	"github.com/shanehull/bottlescraper/internal/types"
)

const (
	DefaultZIP    = "97230"
	DefaultRadius = "30"

	recipientsPrefix  = "RECIPIENTS_"
	testRecipientsKey = "RECIPIENTS_TEST"
)

// Radii accepted by the store locator search form.
var Radii = []string{"5", "10", "15", "20", "25", "30", "50"}

var zipPattern = regexp.MustCompile(`^\d{5}$`)

type SMTPConfig struct {
	Server    string
	Port      int
	User      string
	Pass      string
	FromEmail string
}

type MapConfig struct {
	Dir           string
	BaseURL       string
	CenterCity    string
	RegionSuffix  string
	DefaultCenter types.Coordinate
}

type GeocoderConfig struct {
	UserAgent    string
	Email        string
	NominatimURL string
	PhotonURL    string
	CacheSize    int
}

// Config is the startup configuration of one run.
type Config struct {
	BaseURL       string
	ZIP           string
	Radius        string
	Timeout       time.Duration
	PrimeDelayMin time.Duration
	PrimeDelayMax time.Duration
	ItemDelayMin  time.Duration
	ItemDelayMax  time.Duration
	Seed          uint64

	LogFile         string
	MetricsTextfile string
	CatalogFile     string
	Catalog         []types.CatalogEntry

	SMTP     SMTPConfig
	Map      MapConfig
	Geocoder GeocoderConfig

	// Recipients maps a ZIP code to its recipient list.
	Recipients     map[string][]string
	TestRecipients []string
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://www.oregonliquorsearch.com",
		ZIP:           DefaultZIP,
		Radius:        DefaultRadius,
		Timeout:       10 * time.Second,
		PrimeDelayMin: 10 * time.Second,
		PrimeDelayMax: 30 * time.Second,
		ItemDelayMin:  15 * time.Second,
		ItemDelayMax:  40 * time.Second,
		LogFile:       "logfile.txt",
		Catalog:       DefaultCatalog(),
		SMTP: SMTPConfig{
			Server: "smtp.gmail.com",
			Port:   587,
		},
		Map: MapConfig{
			Dir:           "maps",
			CenterCity:    "Portland, Oregon",
			RegionSuffix:  ", Oregon, USA",
			DefaultCenter: types.Coordinate{Lat: 45.5152, Lon: -122.6784},
		},
		Geocoder: GeocoderConfig{
			UserAgent:    "bottlescraper/1.0",
			NominatimURL: "https://nominatim.openstreetmap.org/search",
			PhotonURL:    "https://photon.komoot.io/api/",
			CacheSize:    256,
		},
		Recipients: map[string][]string{},
	}
}

// Load reads envFile when it exists and builds the configuration from the
// resulting process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
			slog.Debug("env file not found, using process environment", "path", envFile)
		}
	}
	return FromEnviron(os.Environ())
}

// FromEnviron builds the configuration from KEY=VALUE pairs layered over
// DefaultConfig.
func FromEnviron(environ []string) (*Config, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = strings.TrimSpace(value)
	}

	overrides := &Config{
		BaseURL:         env["OLCC_BASE_URL"],
		LogFile:         env["LOG_FILE"],
		MetricsTextfile: env["METRICS_TEXTFILE"],
		CatalogFile:     env["CATALOG_FILE"],
		SMTP: SMTPConfig{
			Server:    env["SMTP_SERVER"],
			User:      env["SMTP_USER"],
			Pass:      env["SMTP_PASS"],
			FromEmail: env["FROM_EMAIL"],
		},
		Map: MapConfig{
			Dir:          env["MAP_DIR"],
			BaseURL:      strings.TrimRight(env["MAP_BASE_URL"], "/"),
			CenterCity:   env["MAP_CENTER_CITY"],
			RegionSuffix: env["MAP_REGION_SUFFIX"],
		},
		Geocoder: GeocoderConfig{
			UserAgent:    env["GEOCODER_USER_AGENT"],
			Email:        env["GEOCODER_EMAIL"],
			NominatimURL: env["NOMINATIM_URL"],
			PhotonURL:    env["PHOTON_URL"],
		},
		Recipients: map[string][]string{},
	}

	var err error
	if overrides.SMTP.Port, err = envInt(env, "SMTP_PORT"); err != nil {
		return nil, err
	}
	if overrides.Timeout, err = envSeconds(env, "REQUEST_TIMEOUT_SECONDS"); err != nil {
		return nil, err
	}
	if overrides.PrimeDelayMin, err = envSeconds(env, "PRIME_DELAY_MIN_SECONDS"); err != nil {
		return nil, err
	}
	if overrides.PrimeDelayMax, err = envSeconds(env, "PRIME_DELAY_MAX_SECONDS"); err != nil {
		return nil, err
	}
	if overrides.ItemDelayMin, err = envSeconds(env, "ITEM_DELAY_MIN_SECONDS"); err != nil {
		return nil, err
	}
	if overrides.ItemDelayMax, err = envSeconds(env, "ITEM_DELAY_MAX_SECONDS"); err != nil {
		return nil, err
	}
	if raw := env["RANDOM_SEED"]; raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RANDOM_SEED %q: %w", raw, err)
		}
		overrides.Seed = seed
	}

	for key, value := range env {
		if key == testRecipientsKey {
			overrides.TestRecipients = parseList(value)
			continue
		}
		zip, ok := strings.CutPrefix(key, recipientsPrefix)
		if ok && zipPattern.MatchString(zip) {
			overrides.Recipients[zip] = parseList(value)
		}
	}

	if err := mergo.Merge(overrides, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to merge default configuration: %w", err)
	}

	if overrides.SMTP.FromEmail == "" {
		overrides.SMTP.FromEmail = overrides.SMTP.User
	}

	if overrides.CatalogFile != "" {
		catalog, err := LoadCatalog(overrides.CatalogFile)
		if err != nil {
			return nil, err
		}
		overrides.Catalog = catalog
	}

	return overrides, nil
}

// ApplyArgs sets the ZIP and radius from the optional positional arguments.
// Invalid values fall back to the defaults.
func (c *Config) ApplyArgs(args []string) {
	if len(args) > 0 {
		c.ZIP = ParseZIP(args[0])
	}
	if len(args) > 1 {
		c.Radius = ParseRadius(args[1])
	}
}

func ParseZIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if zipPattern.MatchString(raw) {
		return raw
	}
	slog.Warn("invalid zip code, using default", "zip", raw, "default", DefaultZIP)
	return DefaultZIP
}

func ParseRadius(raw string) string {
	raw = strings.TrimSpace(raw)
	if slices.Contains(Radii, raw) {
		return raw
	}
	slog.Warn("unsupported radius, using default", "radius", raw, "default", DefaultRadius)
	return DefaultRadius
}

// RecipientsFor returns the list configured for zip, or the test list.
func (c *Config) RecipientsFor(zip string) []string {
	if list, ok := c.Recipients[zip]; ok && len(list) > 0 {
		return list
	}
	return c.TestRecipients
}

func (c *Config) EmailEnabled() bool {
	return c.SMTP.Server != "" && c.SMTP.User != "" && c.SMTP.Pass != ""
}

func (c *Config) Validate() error {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if !zipPattern.MatchString(c.ZIP) {
		return fmt.Errorf("zip code must be 5 digits, got %q", c.ZIP)
	}
	if !slices.Contains(Radii, c.Radius) {
		return fmt.Errorf("radius must be one of %s, got %q", strings.Join(Radii, ", "), c.Radius)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.PrimeDelayMin < 0 || c.ItemDelayMin < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.PrimeDelayMax < c.PrimeDelayMin {
		return fmt.Errorf("prime delay max (%s) is below min (%s)", c.PrimeDelayMax, c.PrimeDelayMin)
	}
	if c.ItemDelayMax < c.ItemDelayMin {
		return fmt.Errorf("item delay max (%s) is below min (%s)", c.ItemDelayMax, c.ItemDelayMin)
	}
	if c.SMTP.Port <= 0 {
		return fmt.Errorf("smtp port must be positive")
	}
	if c.LogFile == "" {
		return fmt.Errorf("log file cannot be empty")
	}
	if c.Map.Dir == "" {
		return fmt.Errorf("map directory cannot be empty")
	}
	if len(c.Catalog) == 0 {
		return fmt.Errorf("catalog cannot be empty")
	}
	return nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt(env map[string]string, key string) (int, error) {
	raw := env[key]
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envSeconds(env map[string]string, key string) (time.Duration, error) {
	n, err := envInt(env, key)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return time.Duration(n) * time.Second, nil
}
