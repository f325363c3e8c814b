// Package cmd assembles the dronewatch command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dronewatch/dronewatch-go/cmd/file"
	"github.com/dronewatch/dronewatch-go/cmd/realtime"
	"github.com/dronewatch/dronewatch-go/cmd/serve"
	"github.com/dronewatch/dronewatch-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dronewatch",
		Short: "Acoustic drone detection and localization",
		Long: "Dronewatch analyzes audio for drone acoustic signatures and, with a " +
			"multi-channel microphone array, estimates the source position.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		file.Command(settings),
		serve.Command(settings),
		realtime.Command(settings),
		configCommand(),
	)
	return rootCmd
}

// configCommand prints the effective configuration, or writes it out as a
// starting point for a user config file.
func configCommand() *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.Setting()
			if writePath != "" {
				if err := conf.SaveSettings(settings, writePath); err != nil {
					return err
				}
				fmt.Printf("configuration written to %s\n", writePath)
				return nil
			}
			data, err := conf.MarshalSettings(settings)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&writePath, "write", "", "Write the configuration to this path instead of printing it")
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Detection.ModelPath, "model", settings.Detection.ModelPath, "Path to the TFLite detection model")
	cmd.PersistentFlags().Float64Var(&settings.Detection.Threshold, "threshold", settings.Detection.Threshold, "Confidence threshold for a positive detection")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
