// scopeproxy CLI - describe proxy targets, generate typed wrappers and
// serve the model and proxy services.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/scopeproxy/artifact"
	"github.com/chazu/scopeproxy/config"
	"github.com/chazu/scopeproxy/factory"
	"github.com/chazu/scopeproxy/introspect"
)

var version = "0.1.0-dev"

var log = commonlog.GetLogger("scopeproxy.cli")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scopeproxy",
		Short: "Access-interceptor proxies for Go structs",
		Long: `scopeproxy introspects Go struct types, classifies their properties
by visibility and generates typed proxy wrappers that run prefix and
suffix interceptors around every method call.

Settings are read from the nearest scopeproxy.toml.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().String("dir", ".", "Directory to resolve packages and scopeproxy.toml from")

	describeCmd := &cobra.Command{
		Use:   "describe <type-id>...",
		Short: "Print the classified model of each type",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDescribe,
	}

	generateCmd := &cobra.Command{
		Use:   "generate <type-id>...",
		Short: "Write typed proxy wrappers for each type",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGenerate,
	}
	generateCmd.Flags().String("out", "", "Output directory (default: artifacts.output)")
	generateCmd.Flags().String("package", "", "Package name of generated files (default: artifacts.package)")
	generateCmd.Flags().String("constructor", artifact.DefaultContract.Constructor, "Constructor name prefix")
	generateCmd.Flags().String("set-prefix", artifact.DefaultContract.SetPrefix, "Prefix interceptor registration method")
	generateCmd.Flags().String("set-suffix", artifact.DefaultContract.SetSuffix, "Suffix interceptor registration method")
	generateCmd.Flags().Bool("stdout", false, "Print sources instead of writing files")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ModelService and ProxyService over Connect",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "localhost:4567", "Listen address")

	rootCmd.AddCommand(describeCmd, generateCmd, serveCmd)
	return rootCmd
}

// loadConfig finds scopeproxy.toml above --dir and configures logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("dir")
	verbose, _ := cmd.Flags().GetCount("verbose")

	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
		cfg.Dir = dir
	}

	commonlog.Configure(cfg.Log.Verbosity+verbose, cfg.LogPath())
	log.Infof("using configuration from %s", cfg.Dir)
	return cfg, nil
}

// newFactory builds a factory from cfg. Packages are always described from
// source: the CLI has no linked-in types to reflect on.
func newFactory(cfg *config.Config, extra ...factory.Option) *factory.Factory {
	opts := []factory.Option{
		factory.WithConfig(cfg),
		factory.WithDescriber(introspect.NewPackageDescriber(cfg.PackageDir())),
	}
	return factory.New(append(opts, extra...)...)
}
