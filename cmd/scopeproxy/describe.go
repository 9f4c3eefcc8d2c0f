package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/scopeproxy/model"
)

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := newFactory(cfg)
	for i, typeID := range args {
		m, err := f.ModelOf(typeID)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		printModel(cmd.OutOrStdout(), m)
	}
	return nil
}

func printModel(w io.Writer, m *model.Model) {
	fmt.Fprintf(w, "%s\n", m.TypeID())
	fmt.Fprintf(w, "  chain: %s\n", strings.Join(m.Chain(), " > "))

	props := m.Properties()
	fmt.Fprintf(w, "  properties (%d):\n", props.Len())
	for _, d := range props.Instance() {
		var flags []string
		if d.Untyped {
			flags = append(flags, "untyped")
		}
		if d.Nullable {
			flags = append(flags, "nullable")
		}
		if d.HasDefault {
			flags = append(flags, "default")
		}
		if d.Referenceable {
			flags = append(flags, "ref")
		}
		fmt.Fprintf(w, "    %-9s %s %s", d.Visibility, d.ID, d.Type)
		if len(flags) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(flags, ","))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  methods (%d):\n", len(m.Methods()))
	for _, md := range m.Methods() {
		params := make([]string, len(md.Params))
		for i, p := range md.Params {
			typ := p.Type.String()
			if p.Variadic {
				typ = "..." + strings.TrimPrefix(typ, "[]")
			}
			params[i] = p.Name + " " + typ
		}
		results := make([]string, len(md.Results))
		for i, r := range md.Results {
			results[i] = r.String()
		}
		sig := md.Name + "(" + strings.Join(params, ", ") + ")"
		switch len(results) {
		case 0:
		case 1:
			sig += " " + results[0]
		default:
			sig += " (" + strings.Join(results, ", ") + ")"
		}
		fmt.Fprintf(w, "    %s\n", sig)
	}
}
