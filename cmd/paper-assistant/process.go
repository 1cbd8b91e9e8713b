// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-assistant/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process [arxiv-id]",
	Short: "Extract text and generate analysis for stored papers",
	Long: `Process runs the extraction and analysis stages for one paper, or with
--all for every unprocessed paper. Extraction failure does not abort
analysis; partial results are reported, not raised. Papers without a
downloaded document are skipped.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().Bool("all", false, "process every unprocessed paper")
	processCmd.Flags().Bool("skip-ocr", false, "skip extraction, analyze with stored text only")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	all, _ := cmd.Flags().GetBool("all")
	if all {
		result, err := a.pipe.ProcessAll(cmd.Context(), os.Stdout)
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d paper(s) failed processing", result.Failed)
		}
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("provide an arXiv ID or use --all")
	}

	skipOCR, _ := cmd.Flags().GetBool("skip-ocr")
	result, err := a.pipe.ProcessPaper(cmd.Context(), args[0], pipeline.ProcessOptions{SkipOCR: skipOCR})
	if err != nil {
		return err
	}

	fmt.Printf("%s: text extracted: %t, analysis generated: %t\n%s\n",
		result.ArxivID, result.TextExtracted, result.AnalysisGenerated, result.Message())
	return nil
}
