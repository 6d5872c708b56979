package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gpuverify/kernelcheck"
	"github.com/gpuverify/kernelcheck/internal/bpl/parse"
	"github.com/gpuverify/kernelcheck/internal/cex"
	"github.com/gpuverify/kernelcheck/internal/report"
)

var (
	diagnoseLocs  string
	diagnoseModel string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <kernel>",
	Short: "Explain solver counterexamples as source-level reports",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fail("Failed to load configuration", err)
		}

		src, err := os.ReadFile(args[0])
		if err != nil {
			fail("Failed to read kernel program", err)
		}
		res, err := kernelcheck.Transform(string(src), cfg, logger)
		if err != nil {
			fail("Transformation failed", err)
		}

		locs := cex.LocTable{}
		if diagnoseLocs != "" {
			f, err := os.Open(diagnoseLocs)
			if err != nil {
				fail("Failed to open source location table", err)
			}
			locs, err = cex.ReadLocs(f)
			f.Close()
			if err != nil {
				fail("Failed to read source location table", err)
			}
		}

		mf, err := os.Open(diagnoseModel)
		if err != nil {
			fail("Failed to open solver model", err)
		}
		model, failures, err := parse.ReadModel(mf)
		mf.Close()
		if err != nil {
			fail("Failed to read solver model", err)
		}
		if len(failures) == 0 {
			logger.Info("no failures recorded in model", zap.String("model", diagnoseModel))
			return
		}

		diags, err := kernelcheck.Diagnose(res, locs, model, failures, logger)
		if err != nil {
			fail("Diagnosis failed", err)
		}
		fmt.Print(report.RenderAll(diags, nil))
		os.Exit(1)
	},
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseLocs, "locs", "", "Path to the source location side table")
	diagnoseCmd.Flags().StringVar(&diagnoseModel, "model", "", "Path to the solver model artifact")
	_ = diagnoseCmd.MarkFlagRequired("model")
}
