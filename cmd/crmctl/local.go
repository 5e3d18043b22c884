package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gartstein/staffing/internal/crm/calendar"
	"github.com/gartstein/staffing/internal/crm/snapshot"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search vendors, resources and jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res := svc.Search(args[0])
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSearch(res))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			stats := calendar.Dashboard(st.Snapshot(), time.Now())
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
			return nil
		},
	}
}

func newIntegrityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "List dangling and circular references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			issues := st.CheckIntegrity()
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), issues)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderIssues(issues))
			return nil
		},
	}
}

var (
	reconcilePrefix  string
	reconcilePattern string
	reconcileRemove  bool
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored objects with file records",
		Long: `Reconcile lists the stored objects and reports objects no record points
at and records whose object is gone. With --remove the orphan objects are
deleted; records are never deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := svc.Reconcile(cmd.Context(), reconcilePrefix, reconcilePattern, reconcileRemove)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReconcile(report, reconcileRemove))
			return nil
		},
	}
	cmd.Flags().StringVar(&reconcilePrefix, "prefix", "", "Only scan objects under this prefix")
	cmd.Flags().StringVar(&reconcilePattern, "pattern", "", "Only scan objects matching this glob, e.g. resumes/**/*.pdf")
	cmd.Flags().BoolVar(&reconcileRemove, "remove", false, "Delete orphan objects")
	return cmd
}

var importForce bool

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Validate a snapshot document and install it as the current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := snapshot.Decode(raw)
			if err != nil {
				return err
			}

			persister, err := snapshot.NewFilePersister(cfg.DataDir, logger)
			if err != nil {
				return err
			}
			if _, err := os.Stat(persister.Path()); err == nil && !importForce {
				return fmt.Errorf("%s exists, use --force to replace it", persister.Path())
			}
			if err := persister.Save(context.WithoutCancel(cmd.Context()), doc.State); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf(
				"imported %d vendors, %d resources, %d jobs, %d process flows, %d files",
				len(doc.State.Vendors), len(doc.State.Resources), len(doc.State.JobRequirements),
				len(doc.State.ProcessFlows), len(doc.State.Files),
			)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&importForce, "force", false, "Replace an existing snapshot")
	return cmd
}
