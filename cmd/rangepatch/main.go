// Command rangepatch applies canonical edits, or Automerge patch events, to a
// YAML or JSON document and prints the result as YAML.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rangepatch",
		Short:         "Apply path-addressed range edits to YAML and JSON documents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newApplyCmd(), newAutomergeCmd(), newJSONPatchCmd())
	return root
}

// docFlags are shared by every subcommand.
type docFlags struct {
	doc  string
	diff bool
}

func (f *docFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.doc, "doc", "", "document to edit (YAML or JSON); empty starts from {}")
	cmd.Flags().BoolVar(&f.diff, "diff", false, "print a unified diff instead of the document")
}

func readDoc(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// readInput reads path, or the command's stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}
