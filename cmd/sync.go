package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/notewire/pkg/localstore/sqlitestore"
	"github.com/mattsolo1/notewire/pkg/notestore"
	"github.com/mattsolo1/notewire/pkg/nwlog"
	"github.com/mattsolo1/notewire/pkg/syncconfig"
	"github.com/mattsolo1/notewire/pkg/syncengine"
)

var syncLog = nwlog.WithComponent("cmd.sync")

// unconfiguredProvider is the stand-in notestore.Provider wired by
// default: notewire is a sync-engine library, not a vendor client, so
// the actual remote transport is an integration point a caller
// supplies (see pkg/notestore.Provider). Running `sync` without one
// fails fast with a clear message instead of silently doing nothing.
type unconfiguredProvider struct{}

func (unconfiguredProvider) UserOwnNoteStore() notestore.NoteStore { return nil }
func (unconfiguredProvider) NoteStoreForNotebook(ctx context.Context, notebookGuid string) (notestore.NoteStore, error) {
	return nil, fmt.Errorf("no remote note store configured: wire a notestore.Provider before calling sync")
}

// NewSyncCmd creates the `sync` subcommand. provider lets an embedder
// of this CLI inject a real notestore.Provider; nil falls back to
// unconfiguredProvider.
func NewSyncCmd(provider notestore.Provider, dataDir *string) *cobra.Command {
	var fullReload bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local note store with the remote service",
		Long:  "Downloads and applies remote sync chunks, then sends locally modified entities back, for the user's own account and every linked notebook.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			v := viper.New()
			v.SetConfigName("notewire")
			v.AddConfigPath(*dataDir)
			_ = v.ReadInConfig()

			cfg, err := syncconfig.LoadEngineConfig(v, "sync")
			if err != nil {
				return fmt.Errorf("load sync config: %w", err)
			}
			if !v.IsSet("sync.persistent_storage_root") {
				cfg.PersistentStorageRoot = *dataDir
			}
			if fullReload {
				cfg.FullReload = true
			}

			store, err := sqlitestore.Open(*dataDir)
			if err != nil {
				return fmt.Errorf("open local store: %w", err)
			}
			defer store.Close()

			np := provider
			if np == nil {
				np = unconfiguredProvider{}
			}
			if np.UserOwnNoteStore() == nil {
				return fmt.Errorf("no remote note store configured: wire a notestore.Provider before calling sync")
			}

			engine := syncengine.New(cfg, syncengine.Collaborators{
				Local:             store,
				NoteStoreProvider: np,
			}, nil)

			result, err := engine.Sync(ctx)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			fmt.Printf("user-own: %d notebooks, %d tags, %d notes processed\n",
				result.UserOwn.NotebookCounters.Total, result.UserOwn.TagCounters.Total, len(result.UserOwn.NoteResults))
			for guid, status := range result.LinkedNotebooks {
				fmt.Printf("linked notebook %s: %d notes processed\n", guid, len(status.NoteResults))
			}
			syncLog.Info().
				Int("user_own_notes", len(result.UserOwn.NoteResults)).
				Int("linked_notebooks", len(result.LinkedNotebooks)).
				Msg("sync complete")

			return nil
		},
	}

	cmd.Flags().BoolVar(&fullReload, "full-reload", false, "Request sync chunks without relying on expunge notices")

	return cmd
}
