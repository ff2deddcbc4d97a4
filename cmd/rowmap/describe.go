package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koustreak/rowmap/internal/record"
	"github.com/koustreak/rowmap/internal/schema"
)

func newDescribeCmd(a *app) *cobra.Command {
	var (
		fromStore bool
		format    string
	)

	cmd := &cobra.Command{
		Use:   "describe [model]",
		Short: "List declared models, or the attributes of one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context(), fromStore)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				return describeModels(out, reg.Models(), format)
			}
			m, err := reg.Lookup(args[0])
			if err != nil {
				return err
			}
			return describeModel(out, m, format)
		},
	}
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "read schema documents from the object store")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func describeModels(w io.Writer, models []*record.Model, format string) error {
	switch format {
	case "json":
		names := make([]string, len(models))
		for i, m := range models {
			names[i] = m.Name()
		}
		return writeJSON(w, names)
	case "yaml":
		defs := make([]*schema.Definition, len(models))
		for i, m := range models {
			defs[i] = m.Definition()
		}
		return writeYAML(w, defs...)
	case "table":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tTABLE\tCOLUMNS\tSTI\tPARENT")
	for _, m := range models {
		parent := "-"
		if p := m.Parent(); p != nil {
			parent = p.Name()
		}
		sti := m.STI()
		if sti == "" {
			sti = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", m.Name(), m.Table(), len(m.Columns()), sti, parent)
	}
	return tw.Flush()
}

func describeModel(w io.Writer, m *record.Model, format string) error {
	def := m.Definition()
	switch format {
	case "json":
		meta := make([]schema.Metadata, 0)
		for _, a := range def.Attributes() {
			meta = append(meta, a.Metadata())
		}
		return writeJSON(w, meta)
	case "yaml":
		return writeYAML(w, def)
	case "table":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tCOLUMN\tTYPE\tFLAGS\tDEFAULT")
	for _, a := range def.Attributes() {
		meta := a.Metadata()
		column := meta.Column
		if meta.Virtual {
			column = "-"
		}
		def := "-"
		if meta.HasDefault {
			def = fmt.Sprint(meta.Default)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", meta.Name, column, meta.Signature, flags(meta), def)
	}
	return tw.Flush()
}

func flags(m schema.Metadata) string {
	var out []string
	if m.Primary {
		out = append(out, "primary")
	}
	if m.AutoGenerated {
		out = append(out, "auto")
	}
	if m.Virtual {
		out = append(out, "virtual")
	}
	if m.Converter != "" {
		out = append(out, "converter="+m.Converter)
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, defs ...*schema.Definition) error {
	out, err := schema.MarshalYAML(defs...)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
