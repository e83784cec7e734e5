package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sdlink/cli/render"
	"github.com/pithecene-io/sdlink/cli/tui"
	"github.com/pithecene-io/sdlink/store"
)

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "session", Usage: "Only records from this session ID"},
		&cli.StringFlag{Name: "device", Usage: "Only records from this device"},
	}
}

func queryFilter(c *cli.Context) store.Filter {
	return store.Filter{
		SessionID: c.String("session"),
		Device:    c.String("device"),
	}
}

// HistoryCommand returns the history command, listing stored transfers.
func HistoryCommand() *cli.Command {
	flags := append([]cli.Flag{ConfigFlag}, filterFlags()...)
	flags = append(flags, &cli.StringFlag{Name: "type", Usage: "Only transfers of this type"})
	flags = append(flags, storageFlags()...)
	flags = append(flags, FormatFlag, NoColorFlag)
	return &cli.Command{
		Name:   "history",
		Usage:  "List transfers recorded by previous sessions",
		Flags:  flags,
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	storage, err := readStorage(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	ds, err := storage.readDataset(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}

	filter := queryFilter(c)
	filter.TransferType = c.String("type")
	summaries, err := store.QueryTransfers(c.Context, ds, filter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("query transfers: %v", err), exitStreamError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(summaries)
}

// StatsCommand returns the stats command, showing the latest stored
// session metrics.
func StatsCommand() *cli.Command {
	flags := append([]cli.Flag{ConfigFlag}, filterFlags()...)
	flags = append(flags, storageFlags()...)
	flags = append(flags, OutputFlags()...)
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show metrics from the most recent stored session",
		Flags:  flags,
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	storage, err := readStorage(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	ds, err := storage.readDataset(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}

	record, err := store.QueryLatestMetrics(c.Context, ds, queryFilter(c))
	if errors.Is(err, store.ErrNoMetricsFound) {
		return cli.Exit("no stored session metrics", exitIncomplete)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("query metrics: %v", err), exitStreamError)
	}

	snap := store.SnapshotFromRecord(record)
	if c.Bool("tui") {
		return tui.RunSummary(snap)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(snap)
}

func readStorage(c *cli.Context) (storageChoice, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return storageChoice{}, err
	}
	return resolveStorage(c, cfg.Storage), nil
}
