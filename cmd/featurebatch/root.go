package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nomis52/featurebatch/buildinfo"
	"github.com/nomis52/featurebatch/config"
)

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "featurebatch",
		Short:         "Batch keypoint feature extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	loadConfig := func() (config.Config, error) {
		if configPath == "" {
			return config.Config{}, errors.New("config flag (-c or --config) is required")
		}
		return config.LoadConfig(configPath)
	}

	rootCmd.AddCommand(newRunCommand(loadConfig))
	rootCmd.AddCommand(newServeCommand(loadConfig))
	rootCmd.AddCommand(newValidateCommand(&configPath))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func newValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if *configPath == "" {
				return errors.New("config flag (-c or --config) is required")
			}
			if _, err := config.LoadConfig(*configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration validation successful: %s\n", *configPath)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Get())
			return nil
		},
	}
}
