package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sdlink/cli/render"
	"github.com/pithecene-io/sdlink/cli/tui"
	"github.com/pithecene-io/sdlink/listing"
	"github.com/pithecene-io/sdlink/types"
)

// TreeCommand returns the tree command, which renders a saved listing
// payload (either listing form) without a device attached.
func TreeCommand() *cli.Command {
	return &cli.Command{
		Name:      "tree",
		Usage:     "Render a saved file listing",
		ArgsUsage: "[listing-file]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "find", Usage: "Show only the subtree at this path"},
			&cli.BoolFlag{Name: "flat", Usage: "List every entry with its full path"},
			&cli.BoolFlag{Name: "stats", Usage: "Show file and directory counts only"},
		}, OutputFlags()...),
		Action: treeAction,
	}
}

func treeAction(c *cli.Context) error {
	data, err := readArgOrStdin(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	root, err := listing.Parse(data)
	if err != nil {
		return cli.Exit(fmt.Sprintf("parse listing: %v", err), exitStreamError)
	}

	if p := c.String("find"); p != "" {
		node := listing.Find(root, p)
		if node == nil {
			return cli.Exit(fmt.Sprintf("path not found: %s", p), exitStreamError)
		}
		root = node
	}

	if c.Bool("tui") {
		return tui.RunBrowser(root, func(p string, node *types.FileNode) (string, error) {
			return fmt.Sprintf("%s (%s)", p, render.FormatBytes(node.Size)), nil
		})
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	switch {
	case c.Bool("stats"):
		return r.Render(listing.Stats(root))
	case c.Bool("flat"):
		return r.Render(listing.Flatten(root))
	default:
		return r.RenderTree(root)
	}
}

// readArgOrStdin reads the first argument as a file, or stdin when the
// argument is absent or "-".
func readArgOrStdin(c *cli.Context) ([]byte, error) {
	path := c.Args().First()
	if path == "" || path == "-" {
		return io.ReadAll(c.App.Reader)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
