package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "1.0.0"

	configFile string
)

func main() {
	root := &cobra.Command{
		Use:   "medguard",
		Short: "Traffic monitoring and anomaly detection for the medichain demo",
		Long: `medguard watches inbound HTTP traffic, aggregates sliding-window
statistics, applies rule-based DDoS thresholds, forwards busy windows to an
external anomaly scorer and scans request surfaces for injection payloads.
Alerts land in a bounded in-memory log consumed by the dashboard and can be
mirrored to Kafka and Postgres.`,
		Version: Version,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSimulateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
