package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "Inspect canary deployments",
}

var deploymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently active canary deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		active := a.canaryMgr.ListActive()
		if len(active) == 0 {
			fmt.Println("no active deployments")
			return nil
		}
		return printJSON(active)
	},
}

var deploymentsReportCmd = &cobra.Command{
	Use:   "report [deployment-id]",
	Short: "Print the failure analysis and report for one deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.canaryMgr.GenerateReport(args[0])
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	deploymentsCmd.AddCommand(deploymentsListCmd)
	deploymentsCmd.AddCommand(deploymentsReportCmd)
}
