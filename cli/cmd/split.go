package cmd

import (
	"bufio"
	"fmt"
	"path"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sdlink/reassembly"
	"github.com/pithecene-io/sdlink/types"
	"github.com/pithecene-io/sdlink/wire"
)

// SplitCommand returns the split command. It produces the envelope stream
// a device would send for a payload, for replay and testing.
func SplitCommand() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Encode a payload as a chunked envelope stream",
		ArgsUsage: "[payload-file]",
		Flags: []cli.Flag{
			ConfigFlag,
			EncodingFlag,
			&cli.StringFlag{
				Name:  "type",
				Usage: "Transfer type for non-file payloads",
				Value: types.KindFileList,
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Send as file data under this device path",
			},
			&cli.IntFlag{
				Name:  "max-chunk",
				Usage: "Fragment size for non-file payloads",
				Value: reassembly.DefaultMaxChunk,
			},
			&cli.IntFlag{
				Name:  "block",
				Usage: "Fragment size for file data",
				Value: reassembly.DefaultFileBlock,
			},
		},
		Action: splitAction,
	}
}

func splitAction(c *cli.Context) error {
	data, err := readArgOrStdin(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	maxChunk := c.Int("max-chunk")
	if !c.IsSet("max-chunk") && cfg.MaxChunk > 0 {
		maxChunk = cfg.MaxChunk
	}
	encoding := pick(c, "encoding", cfg.Encoding)

	var envs []*types.ChunkEnvelope
	if name := c.String("file"); name != "" {
		envs, err = reassembly.SplitFile(path.Clean("/"+name), data, c.Int("block"))
	} else {
		envs, err = reassembly.Split(c.String("type"), data, maxChunk)
	}
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}

	out := bufio.NewWriter(c.App.Writer)
	sink, err := wire.NewSink(encoding, out)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	for _, env := range envs {
		if err := sink.Write(env); err != nil {
			return cli.Exit(err.Error(), exitStreamError)
		}
	}
	if err := out.Flush(); err != nil {
		return cli.Exit(fmt.Sprintf("flush: %v", err), exitStreamError)
	}
	return nil
}
