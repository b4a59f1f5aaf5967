package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/agenthands/contactsync/internal/app"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/spf13/cobra"
)

func newCandidatesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "candidates",
		Aliases: []string{"c"},
		Short:   "Review duplicate candidates",
	}

	cmd.AddCommand(newCandidatesListCommand(ctx))
	cmd.AddCommand(newCandidatesShowCommand(ctx))
	cmd.AddCommand(newCandidatesApproveCommand(ctx))
	cmd.AddCommand(newDecisionCommand(ctx, "reject", "Mark a candidate as not a duplicate"))
	cmd.AddCommand(newDecisionCommand(ctx, "flag", "Set a candidate aside for later review"))
	cmd.AddCommand(newCandidatesClustersCommand(ctx))

	return cmd
}

func newCandidatesListCommand(ctx *commandContext) *cobra.Command {
	var status, confidence string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidates, best match first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				items, total, err := a.Lifecycle().List(cmd.Context(), model.CandidateFilter{
					Status:     model.Status(status),
					Confidence: model.Confidence(confidence),
					Limit:      limit,
					Offset:     offset,
				})
				if err != nil {
					return err
				}
				if total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No candidates")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, c := range items {
					rows = append(rows, []string{
						c.ID,
						strconv.FormatFloat(c.SimilarityScore, 'f', 3, 64),
						string(c.Confidence),
						string(c.Status),
						profileName(c.SourceRecordA),
						a.Lifecycle().CRMIdentifier(c),
						yesNo(c.AIAssisted),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Score", "Confidence", "Status", "Profile", "Contact", "AI"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				fmt.Fprintf(out, "Showing %d of %d\n", len(items), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, approved, rejected, flagged)")
	cmd.Flags().StringVar(&confidence, "confidence", "", "Filter by confidence (high, medium, low, none)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func newCandidatesClustersCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Show profiles and contacts tied together by several candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				groups, err := a.Lifecycle().Clusters(cmd.Context(), model.Status(status))
				if err != nil {
					return err
				}
				if len(groups) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No clusters")
					return nil
				}

				rows := make([][]string, 0, len(groups))
				for _, g := range groups {
					rows = append(rows, []string{
						strconv.FormatFloat(g.TopScore, 'f', 3, 64),
						strings.Join(g.Profiles, "\n"),
						strings.Join(g.Contacts, "\n"),
						strings.Join(g.Candidates, "\n"),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Top Score", "Profiles", "Contacts", "Candidates"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Candidate status to group (default pending)")
	return cmd
}

func newCandidatesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a candidate with its proposed CRM updates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				c, err := a.Lifecycle().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				proposal, err := a.Lifecycle().ProposeUpdates(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(struct {
					*model.Candidate
					Proposal map[string]any `json:"proposal"`
				}{c, proposal}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}

func newCandidatesApproveCommand(ctx *commandContext) *cobra.Command {
	var notes string
	var set []string
	var noUpdate bool

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Write the profile's data to the CRM contact and approve the candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var updates map[string]any
			switch {
			case noUpdate:
				updates = map[string]any{}
			case len(set) > 0:
				updates = make(map[string]any, len(set))
				for _, kv := range set {
					k, v, ok := strings.Cut(kv, "=")
					if !ok || strings.TrimSpace(k) == "" {
						return fmt.Errorf("invalid --set %q, expected field=value", kv)
					}
					updates[strings.TrimSpace(k)] = v
				}
			}

			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				c, err := a.Lifecycle().Approve(cmd.Context(), args[0], updates, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved %s (%d fields written to %s)\n",
					c.ID, len(c.UpdateData), a.Lifecycle().CRMIdentifier(c))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Decision notes")
	cmd.Flags().StringArrayVar(&set, "set", nil, "CRM field to write, as field=value (replaces the proposal)")
	cmd.Flags().BoolVar(&noUpdate, "no-update", false, "Approve without writing to the CRM")
	return cmd
}

func newDecisionCommand(ctx *commandContext, action, short string) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				lc := a.Lifecycle()
				decide := lc.Reject
				if action == "flag" {
					decide = lc.Flag
				}
				c, err := decide(cmd.Context(), args[0], reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Candidate %s is now %s\n", c.ID, c.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the decision was made")
	return cmd
}

func profileName(r model.Record) string {
	if name := r.String("full_name", "Full Name", "name"); name != "" {
		return name
	}
	return strings.TrimSpace(r.String("First Name", "firstName") + " " + r.String("Last Name", "lastName"))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
