package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X".
var (
	SnapsentryVersion, SnapsentryCommit, SnapsentryDate string
)

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Display version, commit hash, build date and the Go runtime snapsentry was built with",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SnapSentry version: %s\n", SnapsentryVersion)
		fmt.Printf("Commit: %s\n", SnapsentryCommit)
		fmt.Printf("Built: %s\n", SnapsentryDate)
		fmt.Printf("Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCommand.AddCommand(versionCommand)
}
