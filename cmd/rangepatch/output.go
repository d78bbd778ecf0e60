package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/kevinwang15/rangepatch"
)

func writeResult(cmd *cobra.Command, df docFlags, doc *rangepatch.Document, before []byte) error {
	after, err := doc.Marshal()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !df.diff {
		_, err := out.Write(after)
		return err
	}
	name := df.doc
	if name == "" {
		name = "document"
	}
	diff, err := unifiedDiff(name, string(before), string(after))
	if err != nil {
		return err
	}
	return writeDiff(out, diff, isTerminal(out))
}

func unifiedDiff(name, before, after string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name,
		ToFile:   name + " (edited)",
		Context:  3,
	})
}

func writeDiff(w io.Writer, diff string, colored bool) error {
	if !colored {
		_, err := io.WriteString(w, diff)
		return err
	}
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	add.EnableColor()
	del.EnableColor()
	hunk.EnableColor()
	for _, ln := range strings.SplitAfter(diff, "\n") {
		var err error
		switch {
		case strings.HasPrefix(ln, "+++"), strings.HasPrefix(ln, "---"):
			_, err = io.WriteString(w, ln)
		case strings.HasPrefix(ln, "+"):
			_, err = add.Fprint(w, ln)
		case strings.HasPrefix(ln, "-"):
			_, err = del.Fprint(w, ln)
		case strings.HasPrefix(ln, "@@"):
			_, err = hunk.Fprint(w, ln)
		default:
			_, err = io.WriteString(w, ln)
		}
		if err != nil {
			return fmt.Errorf("writing diff: %w", err)
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
