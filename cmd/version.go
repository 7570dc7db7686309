package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Y006/phd-site/internal/version"
)

var versionDetailed bool

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionDetailed {
			cmd.Println(version.GetDetailedVersion())
			return nil
		}
		cmd.Printf("phd-site %s\n", version.GetVersion())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "show detailed build information")
}
