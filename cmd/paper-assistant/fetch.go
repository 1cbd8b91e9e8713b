// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [category]",
	Short: "Fetch paper metadata and documents from the catalog",
	Long: `Fetch queries the arXiv catalog for a category's papers submitted on a
given day (default today), downloads each paper's document best-effort,
and saves new records to the store. Already-stored papers are skipped.

With --all, every configured scheduler category is fetched in order.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("date", "", "submission date to fetch (YYYY-MM-DD, default today)")
	fetchCmd.Flags().Bool("all", false, "fetch all configured categories")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	var day *time.Time
	if dateStr, _ := cmd.Flags().GetString("date"); dateStr != "" {
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("invalid date %q: use YYYY-MM-DD", dateStr)
		}
		day = &t
	}

	all, _ := cmd.Flags().GetBool("all")
	if all {
		result := a.pipe.FetchAll(cmd.Context(), a.cfg.Scheduler.Categories, day, os.Stdout)
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d categor(ies) failed", len(result.Errors))
		}
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("provide a category (e.g. cs.AI) or use --all")
	}

	_, err = a.pipe.FetchCategory(cmd.Context(), args[0], day, os.Stdout)
	return err
}
