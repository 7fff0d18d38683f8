package cmd

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jake-scott/bluestar-bridge/version"
)

var _versionCmdOpts struct {
	json   bool
	output string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version of the bridge",

	// No config or logging setup needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doVersion()
	},
}

func init() {
	versionCmd.Flags().BoolVar(&_versionCmdOpts.json, "json", false, "same as --output json")
	versionCmd.Flags().StringVarP(&_versionCmdOpts.output, "output", "o", "", "output format: table, json or yaml")
	versionCmd.MarkFlagsMutuallyExclusive("json", "output")

	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Version   string `json:"version" yaml:"version"`
	Revision  string `json:"revision,omitempty" yaml:"revision,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

func buildRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	revision, dirty := "", false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision != "" && dirty {
		revision += "-dirty"
	}
	return revision
}

func doVersion() error {
	flag := _versionCmdOpts.output
	if _versionCmdOpts.json {
		flag = outputJSON
	}
	if flag == "" {
		flag = outputTable
	}

	format, err := outputFormat(flag, os.Stdout)
	if err != nil {
		return err
	}

	v := versionResult{
		Version:   version.Version,
		Revision:  buildRevision(),
		GoVersion: runtime.Version(),
		UserAgent: version.UserAgent(),
	}

	return render(os.Stdout, format, v, func(tw *tabwriter.Writer) {
		if v.Revision != "" {
			fmt.Fprintf(tw, "bluestar-bridge version %s (%s)\n", v.Version, v.Revision)
			return
		}
		fmt.Fprintf(tw, "bluestar-bridge version %s\n", v.Version)
	})
}
