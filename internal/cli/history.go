package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"promptkit/internal/storage"
)

// NewHistoryCmd creates the history command group.
func NewHistoryCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent renders from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return errNoContext
			}
			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}
			records, err := db.ListRenders(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No renders recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tORIGIN\tSTATUS\tPREFIX\tSUFFIX\tPATH")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.Origin, r.Status, r.PrefixTokens, r.SuffixTokens, r.DocumentPath)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "number of renders to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journal entry with per-component token counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return errNoContext
			}
			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}
			rec, err := db.GetRender(args[0])
			if err != nil {
				return fmt.Errorf("render %s: %w", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
