package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gartstein/staffing/internal/crm/blob"
	"github.com/gartstein/staffing/internal/crm/config"
	"github.com/gartstein/staffing/internal/crm/controller"
	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/snapshot"
	"github.com/gartstein/staffing/internal/crm/store"
	"github.com/gartstein/staffing/internal/crm/upload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose    bool
	jsonOut    bool
	configPath string
	dataDir    string

	logger = zap.NewNop()
	cfg    *config.Config
)

// newRootCmd builds the command tree. Flags are bound to package variables,
// and defining them resets those variables, so every invocation starts from
// the defaults.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crmctl",
		Short: "Operate on a staffing CRM data directory",
		Long: `crmctl reads and maintains the snapshot of a staffing CRM.
Local commands open the data directory directly; flow commands talk to a
running server over gRPC.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = l
			}
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			c, err := config.Load(configPath, os.Getenv)
			if err != nil {
				return err
			}
			if dataDir != "" {
				c.DataDir = dataDir
			}
			cfg = c
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to a YAML or TOML config file")
	root.PersistentFlags().StringVar(&dataDir, "data", "", "Data directory, overrides the config")

	root.AddCommand(
		newSearchCmd(), newStatsCmd(), newIntegrityCmd(), newReconcileCmd(), newImportCmd(),
		newHistoryCmd(), newMoveCmd(), newTailCmd(),
	)
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

// openStore opens the snapshot of the data directory. An empty directory is
// initialised without demo data.
func openStore(ctx context.Context) (*store.Store, *snapshot.FilePersister, error) {
	persister, err := snapshot.NewFilePersister(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(ctx, persister,
		store.WithLogger(logger),
		store.WithoutSeed(),
		store.WithStrictTransitions(cfg.Pipeline.StrictTransitions),
	)
	if err != nil {
		return nil, nil, err
	}
	return st, persister, nil
}

// openService wires a service over the local store and the configured blob
// store. Events are not published from the CLI.
func openService(ctx context.Context) (*controller.CRMService, func(), error) {
	st, _, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	var objects blob.Store
	if cfg.Blob.Driver == config.BlobHTTP {
		objects = blob.NewHTTPStore(cfg.Blob.BaseURL, cfg.Blob.Token, logger, blob.WithMaxRetries(cfg.Blob.MaxRetries))
	} else {
		disk, err := blob.NewDiskStore(cfg.Blob.Root, cfg.Blob.BaseURL)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		objects = disk
	}
	proxy := upload.NewProxy(objects, logger, upload.WithPolicies(cfg.UploadPolicies()))
	return controller.NewCRMService(st, proxy, events.Discard{}, logger), st.Close, nil
}
