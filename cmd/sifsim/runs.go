package main

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"sifsim/internal/store"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func newRunsCmd() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List past training runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Number of runs to list"},
			&cli.StringFlag{Name: "format", Value: formatJSON, Usage: "Output format: json or yaml"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.String(flagDB)
			if path == "" {
				var err error
				if path, err = store.DefaultPath(); err != nil {
					return err
				}
			}
			format := cmd.String("format")
			if format != formatJSON && format != formatYAML {
				return errors.Errorf("unsupported format %q", format)
			}

			if err := store.Init(path); err != nil {
				return err
			}
			db, err := store.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := store.ListRuns(db, cmd.Int("limit"))
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			if format == formatYAML {
				enc := yaml.NewEncoder(w)
				if err := enc.Encode(list); err != nil {
					return errors.Wrap(err, "error encoding runs")
				}
				return errors.Wrap(enc.Close(), "error flushing runs")
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return errors.Wrap(enc.Encode(list), "error encoding runs")
		},
	}
}
