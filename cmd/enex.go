package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/notewire/pkg/enml"
	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/localstore/sqlitestore"
)

// NewEnexCmd creates the `enex` subcommand group: export dumps the
// local store's notes to an ENEX file, import loads one back in.
func NewEnexCmd(dataDir *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "enex",
		Short: "Import and export ENEX note archives",
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export every locally stored note to an ENEX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := sqlitestore.Open(*dataDir)
			if err != nil {
				return fmt.Errorf("open local store: %w", err)
			}
			defer store.Close()

			notes, err := store.ListNotes(ctx, false)
			if err != nil {
				return fmt.Errorf("list notes: %w", err)
			}

			doc, err := enml.ExportENEX(notes, tagNameResolver(ctx, store), "notewire", "1.0", time.Now())
			if err != nil {
				return fmt.Errorf("export enex: %w", err)
			}
			return writeOutput(outPath, doc)
		},
	}
	export.Flags().StringVar(&outPath, "out", "-", "Output file, or - for stdout")

	var inPath string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import notes from an ENEX file into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			data, err := readInput(inPath)
			if err != nil {
				return err
			}

			notes, err := enml.ImportENEX(data)
			if err != nil {
				return fmt.Errorf("import enex: %w", err)
			}

			store, err := sqlitestore.Open(*dataDir)
			if err != nil {
				return fmt.Errorf("open local store: %w", err)
			}
			defer store.Close()

			for _, n := range notes {
				n.LocallyModified = true
				if err := store.PutNote(ctx, n); err != nil {
					return fmt.Errorf("store note %q: %w", n.Title, err)
				}
			}
			fmt.Printf("imported %d notes\n", len(notes))
			return nil
		},
	}
	importCmd.Flags().StringVar(&inPath, "in", "-", "Input file, or - for stdin")

	root.AddCommand(export, importCmd)
	return root
}

// tagNameResolver looks a tag guid/local-id up in the local store for
// ENEX export, where notes carry tag references but ENEX wants names.
func tagNameResolver(ctx context.Context, store localstore.Store) func(ref string) (string, bool) {
	return func(ref string) (string, bool) {
		if t, err := store.FindTagByGuid(ctx, ref); err == nil && t != nil {
			return t.Name, true
		}
		if t, err := store.FindTagByLocalID(ctx, ref); err == nil && t != nil {
			return t.Name, true
		}
		return "", false
	}
}

