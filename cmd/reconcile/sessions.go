package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/agenthands/contactsync/internal/app"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/spf13/cobra"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent reconciliation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				sessions, err := a.Store.ListSessions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
					return nil
				}

				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					outcome := string(s.Outcome)
					if !s.Sealed() {
						outcome = "running"
					}
					rows = append(rows, []string{
						s.ID,
						s.StartedAt.Local().Format(time.DateTime),
						outcome,
						strconv.Itoa(s.PairsCompared),
						strconv.Itoa(s.CandidatesFound),
						strconv.Itoa(s.Errored),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Started", "Outcome", "Pairs", "Candidates", "Errored"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count candidates by status and confidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				stats, err := a.Lifecycle().Stats(cmd.Context())
				if err != nil {
					return err
				}

				var rows [][]string
				for _, s := range []model.Status{model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusFlagged} {
					rows = append(rows, []string{"status", string(s), strconv.Itoa(stats.ByStatus[s])})
				}
				for _, c := range []model.Confidence{model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow, model.ConfidenceNone} {
					rows = append(rows, []string{"confidence", string(c), strconv.Itoa(stats.ByConfidence[c])})
				}
				rows = append(rows, []string{"total", "", strconv.Itoa(stats.Total)})

				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Group", "Value", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
