package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gpuverify/kernelcheck"
)

var (
	transformStrategy string
	transformOut      string
)

var transformCmd = &cobra.Command{
	Use:   "transform <kernel>",
	Short: "Instrument and dualize a kernel program",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fail("Failed to load configuration", err)
		}
		if transformStrategy != "" {
			cfg.Strategy = transformStrategy
		}

		src, err := os.ReadFile(args[0])
		if err != nil {
			fail("Failed to read kernel program", err)
		}

		res, err := kernelcheck.Transform(string(src), cfg, logger)
		if err != nil {
			fail("Transformation failed", err)
		}
		logger.Debug("transformed kernel",
			zap.String("kernel", args[0]),
			zap.Int("declarations", len(res.Transformed.Decls)))

		out := os.Stdout
		if transformOut != "" {
			f, err := os.Create(transformOut)
			if err != nil {
				fail("Failed to create output file", err)
			}
			defer f.Close()
			out = f
		}
		if err := res.Transformed.Fprint(out); err != nil {
			fail("Failed to write transformed program", err)
		}
		fmt.Fprintln(out)
	},
}

func init() {
	transformCmd.Flags().StringVar(&transformStrategy, "strategy", "", "Race instrumentation strategy (original or watchdog)")
	transformCmd.Flags().StringVarP(&transformOut, "output", "o", "", "Output path (default stdout)")
}
