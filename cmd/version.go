package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"mm-swarm/cmd/root"
)

// Filled through -ldflags "-X mm-swarm/cmd.SoftwareVer=..." by the image build.
var (
	SoftwareVer   = ""
	BuildTime     = ""
	BuildTag      = ""
	BuildCommitId = ""
)

var shortVersion bool

// Version is SoftwareVer, or the main module version recorded by the toolchain.
func Version() string {
	if SoftwareVer != "" {
		return SoftwareVer
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "devel"
}

func writeVersions(w io.Writer, short bool) {
	if short {
		fmt.Fprintln(w, Version())
		return
	}
	fmt.Fprintf(w, "mm-swarm %s\n", Version())
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Build Tag: %s\n", BuildTag)
	fmt.Fprintf(w, "Build Commit ID: %s\n", BuildCommitId)
	fmt.Fprintf(w, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Shows the release, build time, git commit and Go runtime of this binary`,
	Run: func(cmd *cobra.Command, args []string) {
		writeVersions(cmd.OutOrStdout(), shortVersion)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&shortVersion, "short", false, "Print the release only")
	root.RootCmd.AddCommand(versionCmd)
	root.RootCmd.Version = Version()

	versionCmd.Example = `  mm-swarm version
  mm-swarm version --short`
}
