package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spoolworks/spoolbridge/internal/bridge"
	"github.com/spoolworks/spoolbridge/internal/config"
	"github.com/spoolworks/spoolbridge/internal/logging"
	"github.com/spoolworks/spoolbridge/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to bridge config file (defaults used when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := observability.InitLogger("spoolbridge")

	cfg := bridge.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := config.LoadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "spoolbridgectl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc, err := bridge.NewService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoolbridgectl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "spoolbridgectl: %v\n", err)
		os.Exit(1)
	}
}
