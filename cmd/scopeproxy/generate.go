package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/scopeproxy/artifact"
	"github.com/chazu/scopeproxy/factory"
)

func runGenerate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	pkg, _ := flags.GetString("package")
	out, _ := flags.GetString("out")
	toStdout, _ := flags.GetBool("stdout")

	c := artifact.DefaultContract
	c.Constructor, _ = flags.GetString("constructor")
	c.SetPrefix, _ = flags.GetString("set-prefix")
	c.SetSuffix, _ = flags.GetString("set-suffix")
	if err := c.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var extra []factory.Option
	if pkg != "" {
		extra = append(extra, factory.WithSourcePackage(pkg))
	}
	if path := cfg.StorePath(); path != "" {
		store, err := artifact.OpenStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		extra = append(extra, factory.WithStore(store))
	}
	f := newFactory(cfg, extra...)

	if out == "" {
		out = cfg.OutputDir()
	}
	if !toStdout {
		if err := os.MkdirAll(out, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	for _, typeID := range args {
		src, err := f.Generate(typeID, c)
		if err != nil {
			return fmt.Errorf("%s: %w", typeID, err)
		}
		for _, s := range src.Skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: skipped %s: %s\n", typeID, s.Method, s.Reason)
		}
		if toStdout {
			cmd.OutOrStdout().Write(src.Code)
			continue
		}
		path := filepath.Join(out, src.FileName())
		if err := os.WriteFile(path, src.Code, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return nil
}
