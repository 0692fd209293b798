package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running autopilot by dropping its pause-file sentinel",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		path := pauseFilePath(a.cfg.Storage.DataDir)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create pause file: %w", err)
		}
		defer f.Close()

		fmt.Printf("autopilot paused (sentinel at %s)\n", path)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused autopilot by removing its pause-file sentinel",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		a, err := buildApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		path := pauseFilePath(a.cfg.Storage.DataDir)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove pause file: %w", err)
		}

		fmt.Println("autopilot resumed")
		return nil
	},
}
