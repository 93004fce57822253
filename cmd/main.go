// Package main provides the entry point for the go-fronius bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/resident-x/go-fronius/internal/api"
	"github.com/resident-x/go-fronius/internal/config"
	"github.com/resident-x/go-fronius/internal/domain"
	"github.com/resident-x/go-fronius/internal/metrics"
	"github.com/resident-x/go-fronius/internal/pubsub"
	"github.com/resident-x/go-fronius/internal/service"
	pvoutput "github.com/resident-x/go-fronius/internal/service/pvoutput"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	Version = "unknown" // Default version, can be overridden by build flags
)

// options are the command line flags.
type options struct {
	configFile     string
	showVersion    bool
	datamanagerURL string
	brokerURL      string
}

func main() {
	code := run(os.Args[1:], os.Stdout)
	os.Exit(code)
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("go-fronius", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configFile, "config", "config.yaml", "Path to configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.StringVar(&opts.datamanagerURL, "datamanager-url", "", "Scrape data from the specified Fronius Datamanager URL")
	fs.StringVar(&opts.brokerURL, "broker-url", "", "Send data to the specified MQTT broker URL")

	err := fs.Parse(args)
	return opts, err
}

func run(args []string, stdout io.Writer) int {
	opts, err := parseFlags(args, stdout)
	if err != nil {
		return 2
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "go-fronius %s\n", Version)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(stdout, "Failed to load configuration: %v\n", err)
		return 1
	}

	if err := applyOverrides(cfg, opts); err != nil {
		fmt.Fprintf(stdout, "Invalid command line: %v\n", err)
		return 1
	}

	initLogger(cfg.LogLevel)
	api.Version = Version

	log.Info().Str("version", Version).Msg("Starting go-fronius bridge")
	cfg.Print()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bridgeOpts := []service.Option{service.WithMetrics(m, reg)}

	var publisher domain.MessagePublisher
	if cfg.MQTT.Enabled {
		mqttPublisher := pubsub.NewMQTTPublisher(cfg)
		mqttPublisher.SetObserver(m)
		if err := mqttPublisher.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MQTT broker, using noop publisher")
			publisher = pubsub.NewNoopPublisher()
		} else {
			publisher = mqttPublisher
			bridgeOpts = append(bridgeOpts, service.WithDiscovery(mqttPublisher))
			log.Info().Msg("MQTT publisher connected successfully")
		}
	} else {
		log.Info().Msg("MQTT disabled, using noop publisher")
		publisher = pubsub.NewNoopPublisher()
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close publisher")
		}
	}()

	var monitoringService domain.MonitoringService
	if cfg.PVOutput.Enabled {
		monitoringService = pvoutput.NewClient(cfg)
	} else {
		monitoringService = pvoutput.NewNoopClient()
	}
	if err := monitoringService.Connect(); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize PVOutput client")
		monitoringService = pvoutput.NewNoopClient()
	}

	bridge, err := service.NewBridge(cfg, publisher, monitoringService, bridgeOpts...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create bridge")
		return 1
	}

	if err := bridge.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start bridge")
		return 1
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := bridge.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping bridge")
		return 1
	}

	log.Info().Msg("Bridge stopped")
	return 0
}

// applyOverrides lets the command line replace the configured Datamanager
// and broker. A broker URL enables MQTT.
func applyOverrides(cfg *config.Config, opts options) error {
	if opts.datamanagerURL != "" {
		cfg.Datamanager.URL = opts.datamanagerURL
	}

	if opts.brokerURL != "" {
		broker, err := url.Parse(opts.brokerURL)
		if err != nil || broker.Hostname() == "" {
			return fmt.Errorf("cannot parse broker url %q", opts.brokerURL)
		}

		cfg.MQTT.Enabled = true
		cfg.MQTT.Host = broker.Hostname()
		cfg.MQTT.Port = 1883
		if p := broker.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid broker port %q", p)
			}
			cfg.MQTT.Port = port
		}
		if broker.User != nil {
			cfg.MQTT.Username = broker.User.Username()
			cfg.MQTT.Password, _ = broker.User.Password()
		}
		if topic := strings.Trim(broker.Path, "/"); topic != "" {
			cfg.MQTT.Topic = topic
		}
	}

	return cfg.Validate()
}

// initLogger configures the global zerolog logger.
func initLogger(level string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		fmt.Printf("Invalid log level '%s', defaulting to 'info'\n", level)
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)
	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}
