package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/hess/app"
	"github.com/kilianp07/hess/infra/logger"
)

var (
	simOutput  string
	simRecords bool
	simSeconds float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the controller offline over synthetic profiles",
	RunE:  simulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simOutput, "output", "o", "", "write the report to this file instead of stdout")
	simulateCmd.Flags().BoolVar(&simRecords, "records", false, "include every step in the report")
	simulateCmd.Flags().Float64Var(&simSeconds, "duration", 0, "override the simulated duration in seconds")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if simSeconds > 0 {
		cfg.Simulation.DurationS = simSeconds
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Simulate(ctx)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	if !simRecords {
		res.Records = nil
	}

	var w io.Writer = cmd.OutOrStdout()
	if simOutput != "" {
		f, err := os.Create(simOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}
