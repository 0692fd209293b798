package main

import (
	"github.com/spf13/cobra"
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Inspect recent autopilot cycles",
}

var cyclesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent cycle records",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.index.ListCycleRecords(limit)
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

var cyclesGetCmd = &cobra.Command{
	Use:   "get [cycle-id]",
	Short: "Print one cycle record by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.index.GetCycleRecord(args[0])
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

func init() {
	cyclesListCmd.Flags().Int("limit", 20, "Maximum number of cycle records to return")
	cyclesCmd.AddCommand(cyclesListCmd)
	cyclesCmd.AddCommand(cyclesGetCmd)
}
