package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvtv/autopilot/pkg/types"
)

var overrideCmd = &cobra.Command{
	Use:   "override [deployment-id] [proceed|rollback]",
	Short: "Manually force a canary deployment's decision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		verdict, err := parseVerdict(args[1])
		if err != nil {
			return err
		}

		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.canaryMgr.ManualOverrideDecision(args[0], verdict, reason); err != nil {
			return err
		}

		fmt.Printf("deployment %s overridden to %s\n", args[0], verdict)
		return nil
	},
}

func init() {
	overrideCmd.Flags().String("reason", "manual operator override", "Reason recorded alongside the override")
}

func parseVerdict(s string) (types.DecisionVerdict, error) {
	switch s {
	case "proceed":
		return types.DecisionProceed, nil
	case "rollback":
		return types.DecisionRollback, nil
	default:
		return "", fmt.Errorf("unknown verdict %q, expected proceed or rollback", s)
	}
}
