package main

import (
	"fmt"
	"os"

	"github.com/cuemby/agency/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agency",
	Short: "agency runs the actor-runtime sample scenarios",
	Long: `agency is a thin demonstration binary for the actor-model runtime
kernel in this module: it builds an environment, registers one or more
cooperations, and drives a scenario to completion via env.Launch.

It is not a product CLI. Its only job is to exercise Launch end to end
and print each scenario's assertion to stdout.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	runCmd.PersistentFlags().String("config", "", "Path to a scenario config file (message_tracing, metrics_addr)")

	runCmd.AddCommand(pingPongCmd)
	runCmd.AddCommand(chameneosCmd)
	runCmd.AddCommand(helloCmd)
	runCmd.AddCommand(deadletterCmd)
	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sample scenario",
}
