package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/agenthands/contactsync/internal/app"
	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/sources"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

type runOptions struct {
	profiles     string
	contacts     string
	profilesPath string
	contactsPath string
	workers      int
	minScore     float64
	autoApprove  bool
	noAI         bool
	lockPath     string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compare a profile export against CRM contacts and record duplicate candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)

			profiles, err := openSource(opts.profiles, opts.profilesPath, "First Name")
			if err != nil {
				return err
			}
			contacts, err := openSource(opts.contacts, opts.contactsPath, "")
			if err != nil {
				return err
			}

			lock := flock.New(lockPath(cfg, opts.lockPath))
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another reconciliation run is already in progress")
			}
			defer func() { _ = lock.Unlock() }()

			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				session, runErr := a.Reconciler.RunSources(cmd.Context(), profiles, contacts)
				if session != nil {
					fmt.Fprint(cmd.OutOrStdout(), renderSession(session))
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVar(&opts.profiles, "profiles", "", "Profile export (.json or .csv)")
	cmd.Flags().StringVar(&opts.contacts, "contacts", "", "CRM contacts (.json or .csv)")
	cmd.Flags().StringVar(&opts.profilesPath, "profiles-path", "", "JSON path selecting the profile array")
	cmd.Flags().StringVar(&opts.contactsPath, "contacts-path", "", "JSON path selecting the contact array")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent pair workers")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Minimum similarity for a candidate")
	cmd.Flags().BoolVar(&opts.autoApprove, "auto-approve", false, "Approve high-confidence candidates immediately")
	cmd.Flags().BoolVar(&opts.noAI, "no-ai", false, "Skip AI adjudication")
	cmd.Flags().StringVar(&opts.lockPath, "lock", "", "Lock file preventing concurrent runs")
	_ = cmd.MarkFlagRequired("profiles")
	_ = cmd.MarkFlagRequired("contacts")

	return cmd
}

// apply overrides configuration with flags the user actually set.
func (o runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = o.workers
	}
	if cmd.Flags().Changed("min-score") {
		minScore := o.minScore
		cfg.Batch.MinScore = &minScore
	}
	if cmd.Flags().Changed("auto-approve") {
		cfg.Batch.AutoApprove = o.autoApprove
	}
	if o.noAI {
		cfg.Adjudication.Enabled = false
	}
}

func openSource(path, jsonPath, headerHint string) (sources.RecordSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return sources.JSONFile{Path: path, JSONPath: jsonPath}, nil
	case ".csv":
		return sources.CSVFile{Path: path, HeaderHint: headerHint}, nil
	}
	return sources.Open(path)
}

func lockPath(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	if cfg.Store.Backend == "sqlite" && cfg.SQLite.Path != "" {
		return cfg.SQLite.Path + ".lock"
	}
	return filepath.Join(os.TempDir(), "contactsync-run.lock")
}

func renderSession(s *model.Session) string {
	rows := [][]string{
		{"Session", s.ID},
		{"Outcome", string(s.Outcome)},
		{"Profiles", strconv.Itoa(s.ProfilesCount)},
		{"Contacts", strconv.Itoa(s.ContactsCount)},
		{"Pairs compared", strconv.Itoa(s.PairsCompared)},
		{"Candidates", strconv.Itoa(s.CandidatesFound)},
		{"Auto-approved", strconv.Itoa(s.Approved)},
		{"Auto-rejected", strconv.Itoa(s.Rejected)},
		{"Errored pairs", strconv.Itoa(s.Errored)},
		{"AI unavailable", strconv.Itoa(s.AIUnavailable)},
	}
	if s.EndedAt != nil {
		rows = append(rows, []string{"Duration", s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String()})
	}
	if s.ErrorMessage != "" {
		rows = append(rows, []string{"Error", s.ErrorMessage})
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
