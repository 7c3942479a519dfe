package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/notewire/pkg/enml"
)

// NewEnmlCmd creates the `enml` subcommand group: to-html and to-enml
// one-shot converters for piping a single document through the
// converter from the shell.
func NewEnmlCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "enml",
		Short: "Convert between ENML and HTML",
	}

	var inPath, outPath string

	toHTML := &cobra.Command{
		Use:   "to-html",
		Short: "Convert an ENML document to HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(inPath)
			if err != nil {
				return err
			}
			conv := enml.New(nil, nil)
			html, err := conv.ToHTML(string(data), nil)
			if err != nil {
				return fmt.Errorf("convert to html: %w", err)
			}
			return writeOutput(outPath, html)
		},
	}
	toHTML.Flags().StringVar(&inPath, "in", "-", "Input file, or - for stdin")
	toHTML.Flags().StringVar(&outPath, "out", "-", "Output file, or - for stdout")

	toENML := &cobra.Command{
		Use:   "to-enml",
		Short: "Convert an HTML document to ENML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(inPath)
			if err != nil {
				return err
			}
			conv := enml.New(nil, nil)
			doc, err := conv.ToENML(string(data), nil)
			if err != nil {
				return fmt.Errorf("convert to enml: %w", err)
			}
			return writeOutput(outPath, doc)
		},
	}
	toENML.Flags().StringVar(&inPath, "in", "-", "Input file, or - for stdin")
	toENML.Flags().StringVar(&outPath, "out", "-", "Output file, or - for stdout")

	root.AddCommand(toHTML, toENML)
	return root
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path, content string) error {
	if path == "-" || path == "" {
		_, err := fmt.Print(content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
