package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevinwang15/rangepatch"
)

func newApplyCmd() *cobra.Command {
	var (
		df    docFlags
		edits string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a stream of canonical [path, range, value?] edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, before, err := loadDoc(df.doc)
			if err != nil {
				return err
			}
			in, err := readInput(cmd, edits)
			if err != nil {
				return err
			}
			es, err := rangepatch.DecodeEdits(bytes.NewReader(in))
			if err != nil {
				return err
			}
			for i, e := range es {
				if err := doc.Apply(e); err != nil {
					return fmt.Errorf("edit %d %s: %w", i, e, err)
				}
			}
			return writeResult(cmd, df, doc, before)
		},
	}
	df.register(cmd)
	cmd.Flags().StringVar(&edits, "edits", "-", "file of JSON edits, - for stdin")
	return cmd
}

func newAutomergeCmd() *cobra.Command {
	var (
		df     docFlags
		events string
		after  string
	)
	cmd := &cobra.Command{
		Use:   "automerge",
		Short: "Translate Automerge patch events and apply them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, before, err := loadDoc(df.doc)
			if err != nil {
				return err
			}
			in, err := readInput(cmd, events)
			if err != nil {
				return err
			}
			evs, err := rangepatch.DecodeEvents(in)
			if err != nil {
				return err
			}
			var snap rangepatch.Snapshot
			if after != "" {
				d, err := readInput(cmd, after)
				if err != nil {
					return err
				}
				if !json.Valid(d) {
					return fmt.Errorf("snapshot %s is not valid JSON", after)
				}
				snap = rangepatch.JSONSnapshot(d)
			}
			if err := doc.ApplyEvents(evs, snap); err != nil {
				return err
			}
			return writeResult(cmd, df, doc, before)
		},
	}
	df.register(cmd)
	cmd.Flags().StringVar(&events, "events", "-", "file of Automerge patch events, - for stdin")
	cmd.Flags().StringVar(&after, "after", "", "JSON document after the change, used for inc and conflict events")
	return cmd
}

func newJSONPatchCmd() *cobra.Command {
	var (
		doc   string
		edits string
	)
	cmd := &cobra.Command{
		Use:   "jsonpatch",
		Short: "Print the RFC 6902 JSON Patch equivalent of canonical edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, _, err := loadDoc(doc)
			if err != nil {
				return err
			}
			in, err := readInput(cmd, edits)
			if err != nil {
				return err
			}
			es, err := rangepatch.DecodeEdits(bytes.NewReader(in))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, e := range es {
				// later edits see the effect of earlier ones
				p, err := rangepatch.ApplyRecorded(d.Root, e)
				if err != nil {
					return fmt.Errorf("edit %d %s: %w", i, e, err)
				}
				if err := enc.Encode(p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&doc, "doc", "", "document the edits apply to (YAML or JSON); empty starts from {}")
	cmd.Flags().StringVar(&edits, "edits", "-", "file of JSON edits, - for stdin")
	return cmd
}

// loadDoc parses the document at path and returns it with its YAML rendering
// before any edit.
func loadDoc(path string) (*rangepatch.Document, []byte, error) {
	data, err := readDoc(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := rangepatch.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	before, err := doc.Marshal()
	if err != nil {
		return nil, nil, err
	}
	return doc, before, nil
}
