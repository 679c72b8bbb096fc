package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/site-selection/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the local run log and source cache",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent dashboard renders",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Kind: kind, Limit: limit})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stdout, "No runs recorded.")
			return nil
		}
		return formatRunsList(os.Stdout, runs)
	},
}

var runsSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List cached remote sheets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sources, err := st.ListSources(ctx)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Fprintln(os.Stdout, "No sources cached.")
			return nil
		}
		return formatSourcesList(os.Stdout, sources)
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "only runs of this kind (scores, sales, export)")
	runsListCmd.Flags().Int("limit", 20, "max runs to show")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsSourcesCmd)
	rootCmd.AddCommand(runsCmd)
}

func formatRunsList(w io.Writer, runs []store.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tROWS\tWARNINGS\tFILTERS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			shortID(r.ID), r.Kind, r.Rows, len(r.Warnings), formatFilters(r.Filters),
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func formatSourcesList(w io.Writer, sources []store.Source) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tETAG\tFETCHED")
	for _, s := range sources {
		etag := s.ETag
		if etag == "" {
			etag = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.URL, etag, s.FetchedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// formatFilters renders filters as sorted key=value pairs.
func formatFilters(m map[string]string) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
