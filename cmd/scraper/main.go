package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/shanehull/bottlescraper/internal/config"
	"github.com/shanehull/bottlescraper/internal/geo"
	"github.com/shanehull/bottlescraper/internal/metrics"
	"github.com/shanehull/bottlescraper/internal/notify"
	"github.com/shanehull/bottlescraper/internal/olcc"
	"github.com/shanehull/bottlescraper/internal/runlog"
	"github.com/shanehull/bottlescraper/internal/search"
)

var (
	envFile     string
	catalogFile string
	seed        uint64
	verbose     bool
	noMaps      bool
)

var rootCmd = &cobra.Command{
	Use:   "bottlescraper [zip] [radius]",
	Short: "Search Oregon liquor stores for the catalog and e-mail what is in stock.",
	Long: fmt.Sprintf(`Searches the Oregon liquor store locator for every catalog item around a ZIP
code and e-mails the stores that have stock.

zip must be 5 digits (default %s). radius is one of 5, 10, 15, 20, 25, 30
or 50 miles (default %s). Invalid values fall back to the defaults.`, config.DefaultZIP, config.DefaultRadius),
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScraper,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&catalogFile, "catalog", "", "YAML catalog file (overrides CATALOG_FILE)")
	rootCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for order, delays and user agent (overrides RANDOM_SEED, 0 = time based)")
	rootCmd.Flags().BoolVar(&noMaps, "no-maps", false, "Skip geocoding and map generation")
	rootCmd.AddCommand(logCmd)
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyArgs(args)

	if catalogFile != "" {
		catalog, err := config.LoadCatalog(catalogFile)
		if err != nil {
			return nil, err
		}
		cfg.CatalogFile = catalogFile
		cfg.Catalog = catalog
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runScraper(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	runSeed := cfg.Seed
	if runSeed == 0 {
		runSeed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(runSeed, runSeed>>1|1))

	session, err := olcc.NewSession(cfg.BaseURL, cfg.Timeout, rng)
	if err != nil {
		return err
	}
	slog.Info("Starting bottlescraper",
		"zip", cfg.ZIP,
		"radius", cfg.Radius,
		"items", len(cfg.Catalog),
		"seed", runSeed,
		"user_agent", session.UserAgent(),
	)

	runLog := runlog.New(cfg.LogFile)
	m := metrics.New()

	recipients := cfg.RecipientsFor(cfg.ZIP)
	sender := notify.NewEmailSender(notify.EmailConfig{
		SMTPServer: cfg.SMTP.Server,
		SMTPPort:   cfg.SMTP.Port,
		SMTPUser:   cfg.SMTP.User,
		SMTPPass:   cfg.SMTP.Pass,
		FromEmail:  cfg.SMTP.FromEmail,
		Enabled:    cfg.EmailEnabled(),
	})

	runner := search.NewRunner(search.Config{
		ZIP:           cfg.ZIP,
		Radius:        cfg.Radius,
		Catalog:       cfg.Catalog,
		PrimeDelayMin: cfg.PrimeDelayMin,
		PrimeDelayMax: cfg.PrimeDelayMax,
		ItemDelayMin:  cfg.ItemDelayMin,
		ItemDelayMax:  cfg.ItemDelayMax,
		Recipients:    recipients,
	}, session, runLog, rng).
		WithNotifier(sender).
		WithMetrics(m)

	if !noMaps {
		builder, err := newMapBuilder(cfg)
		if err != nil {
			return err
		}
		runner.WithMaps(builder)
	}

	report, runErr := runner.Run(cmd.Context())

	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		slog.Warn("Failed to write metrics", "path", cfg.MetricsTextfile, "error", err)
	}

	switch {
	case errors.Is(runErr, search.ErrSessionEstablishment):
		slog.Error("Could not establish a session with the store locator", "error", runErr)
		return nil
	case runErr != nil:
		slog.Warn("Run stopped early", "error", runErr)
		return nil
	}

	notify.ReportRun(cmd.OutOrStdout(), runner.Outcomes(), report, runLog.Path())
	return nil
}

// newMapBuilder wires the geocoder chain: Nominatim at one request per
// second, Photon when Nominatim has no answer, and an LRU over both.
func newMapBuilder(cfg *config.Config) (*geo.Builder, error) {
	nominatim := geo.NewNominatim(
		cfg.Geocoder.NominatimURL,
		cfg.Geocoder.UserAgent,
		cfg.Geocoder.Email,
		cfg.Timeout,
		rate.NewLimiter(rate.Every(time.Second), 1),
	)
	photon := geo.NewPhoton(cfg.Geocoder.PhotonURL, cfg.Geocoder.UserAgent, cfg.Timeout)

	cached, err := geo.NewCached(geo.Fallback{nominatim, photon}, cfg.Geocoder.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode cache: %w", err)
	}
	return geo.NewBuilder(cached, cfg.Map), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
