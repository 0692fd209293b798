package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autopilot cycle controller until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.MetricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				mux.Handle("/health", metrics.HealthHandler())
				mux.Handle("/ready", metrics.ReadyHandler())
				mux.Handle("/live", metrics.LivenessHandler())
				if err := http.ListenAndServe(a.cfg.MetricsAddr, mux); err != nil {
					log.WithComponent("metrics").Error().Err(err).Msg("metrics server exited")
				}
			}()
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.controller.Start(ctx)
		<-ctx.Done()
		a.controller.Stop()
		return nil
	},
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Manage individual autopilot cycles",
}

var cycleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger one manual cycle and print the resulting record",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.controller.RunOnce(context.Background())
		if err != nil {
			printJSON(record)
			return err
		}
		return printJSON(record)
	},
}

func init() {
	cycleCmd.AddCommand(cycleRunCmd)
}
