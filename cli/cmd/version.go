package cmd

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sdlink/cli/render"
	"github.com/pithecene-io/sdlink/types"
	"github.com/pithecene-io/sdlink/wire"
)

// VersionInfo is what `sdlink version` prints. Version doubles as the
// contract_version stamped on adapter events.
type VersionInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	GoVersion string   `json:"go_version"`
	Encodings []string `json:"encodings"`
}

// VersionCommand reports the build. commit comes from ldflags.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version, commit and supported stream encodings",
		Flags: []cli.Flag{FormatFlag, NoColorFlag},
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(VersionInfo{
				Version:   types.Version,
				Commit:    commit,
				GoVersion: runtime.Version(),
				Encodings: wire.Encodings,
			})
		},
	}
}
