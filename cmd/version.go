package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/jah/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for jah including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)

Examples:
  jah version                # Show version details
  jah version --short        # Show the version only
  jah version --format json  # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().Bool("short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	short, _ := cmd.Flags().GetBool("short")
	info := version.Get()
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(info)
	case "text":
		if short {
			fmt.Fprintln(out, info.Short())
			return nil
		}
		fmt.Fprintln(out, info.String())

		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}
}
