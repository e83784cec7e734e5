// Package cmd provides CLI commands for the sdlink binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sdlink/cli/config"
	"github.com/pithecene-io/sdlink/store"
	"github.com/pithecene-io/sdlink/wire"
)

// Exit codes.
const (
	exitSuccess        = 0
	exitStreamError    = 1
	exitSetupError     = 2
	exitHandlerFailure = 3
	exitIncomplete     = 4
)

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml (default: table on a TTY, json otherwise)",
	}

	// NoColorFlag disables colored table output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode",
	}

	// ConfigFlag points at the sdlink.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (missing file is ignored unless set explicitly)",
		Value:   config.DefaultPath,
		EnvVars: []string{"SDLINK_CONFIG"},
	}

	// EncodingFlag selects the wire encoding.
	EncodingFlag = &cli.StringFlag{
		Name:    "encoding",
		Aliases: []string{"e"},
		Usage:   "Wire encoding: jsonl, msgpack, cbor",
		Value:   wire.EncodingJSONL,
	}
)

// OutputFlags returns the shared rendering flags.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// storageFlags returns the flags that select a storage backend.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-backend", Usage: "Storage backend: fs, s3 or memory (empty disables persistence)"},
		&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID", Value: store.DefaultDataset},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
		&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint URL (MinIO, R2)"},
		&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Force path-style S3 addressing"},
	}
}

// loadConfig reads the --config file. The default path may be absent.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if c.IsSet("config") {
		return config.Load(path)
	}
	return config.LoadOptional(path)
}

// pick returns the flag value when set on the command line, else the
// config value when non-empty, else the flag default.
func pick(c *cli.Context, flag, fromConfig string) string {
	if c.IsSet(flag) || fromConfig == "" {
		return c.String(flag)
	}
	return fromConfig
}
