package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gpuverify/kernelcheck"
)

var (
	cfgFile string
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kernelcheck",
	Short: "kernelcheck - two-thread reduction and counterexample diagnosis for GPU kernels",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(diagnoseCmd)
}

// loadConfig layers the configuration file, when given, over defaults.
func loadConfig() (kernelcheck.Config, error) {
	if cfgFile == "" {
		return kernelcheck.DefaultConfig(), nil
	}
	return kernelcheck.LoadConfig(cfgFile)
}

// fail logs the error and exits with the code reserved for its class:
// 2 for problems in the user's input, 1 otherwise.
func fail(msg string, err error) {
	logger.Error(msg, zap.Error(err))
	_ = logger.Sync()
	if kernelcheck.UserError(err) {
		os.Exit(2)
	}
	os.Exit(1)
}
