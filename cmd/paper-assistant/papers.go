// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-assistant/internal/store"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Inspect and manage stored papers (list, show, delete, export, search)",
	Long: `Papers works with the local paper store. Use subcommands to list and
filter papers, show one record in full, delete records, export the
collection, or run full-text search over extracted text.`,
}

// --- list subcommand ---

var papersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored papers with optional filters",
	RunE:  runPapersList,
}

func runPapersList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	filter := filterFromFlags(cmd)
	limit, _ := cmd.Flags().GetInt("limit")

	papers, err := a.st.List(filter, limit, 0)
	if err != nil {
		return err
	}
	if len(papers) == 0 {
		fmt.Println("No papers found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-12s  %-9s  %-10s  %s\n",
		"ArXiv ID", "Published", "Processed", "Category", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for _, p := range papers {
		title := p.Metadata.Title
		if len(title) > 48 {
			title = title[:45] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-16s  %-12s  %-9t  %-10s  %s\n",
			p.Metadata.ArxivID,
			p.Metadata.PublishedDate.Format("2006-01-02"),
			p.Processed,
			p.Metadata.PrimaryCategory,
			title,
		)
	}

	total, err := a.st.Count(filter)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d of %d paper(s)\n", len(papers), total)
	return nil
}

// --- show subcommand ---

var papersShowCmd = &cobra.Command{
	Use:   "show [arxiv-id]",
	Short: "Show one paper record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runPapersShow,
}

func runPapersShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	paper, err := a.st.Get(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(paper)
}

// --- delete subcommand ---

var papersDeleteCmd = &cobra.Command{
	Use:   "delete [arxiv-id]",
	Short: "Delete a paper record from the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runPapersDelete,
}

func runPapersDelete(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	deleted, err := a.st.Delete(args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("paper %s not found", args[0])
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

// --- export subcommand ---

var papersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the paper collection to YAML or JSON",
	Long: `Export writes all stored papers (or a filtered subset) to stdout as
YAML or JSON, suitable for backup or downstream tooling.`,
	RunE: runPapersExport,
}

func runPapersExport(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	filter := filterFromFlags(cmd)
	papers, err := a.st.List(filter, 0, 0)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(papers)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

// --- search subcommand ---

var papersSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over titles, abstracts, and extracted text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPapersSearch,
}

func runPapersSearch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	idx, err := a.openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx := context.Background()
	if _, err := idx.Sync(ctx, a.st); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := idx.Search(ctx, strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, h := range hits {
		fmt.Fprintf(os.Stdout, "%d. %s  %s\n   %s\n", i+1, h.ArxivID, h.Title, h.Snippet)
	}
	fmt.Fprintf(os.Stdout, "\n%d result(s)\n", len(hits))
	return nil
}

// --- shared helpers ---

func filterFromFlags(cmd *cobra.Command) store.Filter {
	category, _ := cmd.Flags().GetString("category")
	dateFrom, _ := cmd.Flags().GetString("date-from")
	dateTo, _ := cmd.Flags().GetString("date-to")
	search, _ := cmd.Flags().GetString("search")

	filter := store.Filter{
		Category: category,
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Search:   search,
	}
	if cmd.Flags().Changed("processed") {
		processed, _ := cmd.Flags().GetBool("processed")
		filter.Processed = &processed
	}
	return filter
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("category", "", "filter by primary category (e.g. cs.AI)")
	cmd.Flags().String("date-from", "", "filter by published date, inclusive lower bound (YYYY-MM-DD)")
	cmd.Flags().String("date-to", "", "filter by published date, inclusive upper bound (YYYY-MM-DD)")
	cmd.Flags().String("search", "", "substring match on title and abstract")
	cmd.Flags().Bool("processed", false, "filter by processed state")
}

func init() {
	addFilterFlags(papersListCmd)
	papersListCmd.Flags().Int("limit", 0, "maximum papers to list (0 = all)")

	addFilterFlags(papersExportCmd)
	papersExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	papersSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")

	papersCmd.AddCommand(papersListCmd)
	papersCmd.AddCommand(papersShowCmd)
	papersCmd.AddCommand(papersDeleteCmd)
	papersCmd.AddCommand(papersExportCmd)
	papersCmd.AddCommand(papersSearchCmd)

	rootCmd.AddCommand(papersCmd)
}
