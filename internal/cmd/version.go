package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenstreak/greenstreak/internal/server/handlers"
)

var (
	extended    bool
	versionJSON bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for full details including Crucible and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		handlers.SetAppIdentity(GetAppIdentity())
		info := handlers.CurrentBuildInfo()
		out := cmd.OutOrStdout()

		if versionJSON {
			payload, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(payload))
			return err
		}

		if !extended {
			_, err := fmt.Fprintf(out, "%s %s\n", info.Name, info.Version)
			return err
		}
		_, err := fmt.Fprintf(out, "%s %s\nCommit: %s\nBuilt: %s\nGo: %s\nPlatform: %s\n\nGofulmen: %s\nCrucible: %s\n",
			info.Name, info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform,
			info.Dependencies["gofulmen"], info.Dependencies["crucible"])
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build information as JSON")
}
