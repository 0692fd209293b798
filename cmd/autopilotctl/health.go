package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the autopilot's dependencies are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			fmt.Printf("unhealthy: %v\n", err)
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := a.store.Query(ctx, "healthcheck", time.Now().Add(-time.Minute), time.Now()); err != nil {
			fmt.Printf("unhealthy: timeseries store unreachable: %v\n", err)
			return err
		}

		status := a.controller.Status()
		fmt.Printf("healthy: paused=%v active_deployments=%d last_cycle=%s\n",
			status.Paused, status.ActiveDeployments, status.LastCycleID)
		return nil
	},
}
