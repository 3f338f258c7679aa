// Package cmd provides the command-line interface for jah.
//
// Settings come from several sources with clear precedence:
//  1. Command-line flags (--config, --port, etc.) - highest priority
//  2. Individual environment variables (JAH_PORT, JAH_BUILD_DIR, etc.)
//  3. A .env file in the working directory
//  4. Built-in defaults - lowest priority
//
// The project itself is described by its jah.json (or jah.yml) file, which
// --config points at.
package cmd

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jah",
	Short: "Bundle browser scripts and resources, and serve them while developing",
	Long: `jah assembles a project's script modules and resource files, together with
the jah runtime and any declared libraries, into deployable script bundles.
The development server resolves and wraps the same files on every request,
so no build directory is needed while developing.

Quick Start:
  jah build                      Write bundles to ./build
  jah serve --watch              Serve the project with live reload
  jah version                    Show version information`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: bindFlags,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Errors are printed with fix suggestions when jah knows any.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln(jaherrors.FormatSuggestions("Error: "+err.Error(), jaherrors.Suggest(err)))
	}

	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", config.FileName, "project config file (env JAH_CONFIG)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("runtime", "", "use the jah runtime checked out in this directory instead of the embedded one")
}

// initConfig loads .env and enables JAH_* environment variables.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// a malformed .env is reported but never fatal
		rootCmd.PrintErrln("Ignoring .env:", err)
	}

	config.SetDefaults()
	viper.SetEnvPrefix("JAH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// bindFlags binds the flags of the command being run, inherited ones
// included, so flags set on the command line win over the environment.
func bindFlags(cmd *cobra.Command, _ []string) error {
	var err error
	bind := func(f *pflag.Flag) {
		if bindErr := viper.BindPFlag(f.Name, f); bindErr != nil && err == nil {
			err = bindErr
		}
	}
	cmd.InheritedFlags().VisitAll(bind)
	cmd.LocalFlags().VisitAll(bind)

	return err
}
