package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/resident-x/go-fronius/internal/simulator"
	"github.com/resident-x/go-fronius/internal/solarapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		listenAddr = flag.String("listen", ":8080", "Address the simulated Datamanager listens on")
		version    = flag.String("api", "1", "Solar API version to simulate (0 or 1)")
		peakPower  = flag.Float64("peak", 8200, "PV power at solar noon in W")
		baseLoad   = flag.Float64("load", 450, "Household consumption in W")
		loggerID   = flag.String("logger-id", "240.424242", "Logger unique id")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Fronius Datamanager simulator\n\n")
		fmt.Printf("Serves a synthetic Solar API with a diurnal PV curve for testing go-fronius.\n\n")
		fmt.Printf("Usage:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExample:\n")
		fmt.Printf("  %s -listen :8080 -api 1 -peak 5000\n", os.Args[0])
		fmt.Printf("  go-fronius -datamanager http://localhost:8080/\n")
		os.Exit(0)
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	apiVersion := solarapi.APIVersion(*version)
	if apiVersion != solarapi.V0 && apiVersion != solarapi.V1 {
		log.Fatal().Str("api", *version).Msg("Unsupported Solar API version")
	}

	sim := simulator.New(simulator.Options{
		Version:   apiVersion,
		PeakPower: *peakPower,
		BaseLoad:  *baseLoad,
		LoggerID:  *loggerID,
	})

	server := &http.Server{
		Addr:              *listenAddr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down simulator")
		}
	}()

	log.Info().
		Str("listen", *listenAddr).
		Str("api", string(apiVersion)).
		Str("base_path", sim.BasePath()).
		Msg("Datamanager simulator started")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Simulator error")
	}
}
