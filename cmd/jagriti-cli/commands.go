package main

import (
	"encoding/json"
	"fmt"

	"jagriti-backend/lib/scrapers/jagriti"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "Lists every state with its portal id.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := getPortal(cmd.Context()).States(cmd.Context())
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "State"})
			for _, s := range states {
				t.AppendRow(table.Row{s.ID, s.Name})
			}
			t.Render()
			return nil
		},
	}
}

func newCommissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commissions <state id or name>",
		Short: "Lists the district commissions of a state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, commissions, err := getPortal(cmd.Context()).Commissions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.SetTitle(fmt.Sprintf("%s (%s)", state.Name, state.ID))
			t.AppendHeader(table.Row{"ID", "Commission"})
			for _, c := range commissions {
				t.AppendRow(table.Row{c.ID, c.Name})
			}
			t.Render()
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var kind string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <state> <commission> <value>",
		Short: "Searches the cases of a district commission.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchKind, err := jagriti.ParseSearchKind(kind)
			if err != nil {
				return err
			}
			res, err := getPortal(cmd.Context()).Search(cmd.Context(), jagriti.Query{
				State:       args[0],
				Commission:  args[1],
				SearchValue: args[2],
				Kind:        searchKind,
			})
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(res)
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Case", "Stage", "Filed", "Complainant", "Respondent", "Document"})
			for _, c := range res.Cases {
				t.AppendRow(table.Row{
					c.CaseNumber,
					c.CaseStage,
					orDash(c.FilingDate),
					c.Complainant,
					c.Respondent,
					orDash(c.DocumentLink),
				})
			}
			footer := fmt.Sprintf("%d cases", res.TotalCount)
			if res.SkippedRows > 0 {
				footer = fmt.Sprintf("%s, %d unreadable rows skipped", footer, res.SkippedRows)
			}
			t.AppendFooter(table.Row{footer})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", jagriti.KindCaseNumber.Slug(), "What the value matches: case-number, complainant, respondent, complainant-advocate, respondent-advocate, industry-type or judge.")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON.")
	return cmd
}

func newWarmCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Loads every state's commissions, reporting the ones that fail.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := getPortal(cmd.Context()).Warm(cmd.Context(), concurrency)
			if err != nil {
				return err
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"%d states, %d commissions, %d states failed\n",
				stats.States, stats.Commissions, stats.Failed,
			)
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "How many states are loaded at once.")
	return cmd
}
