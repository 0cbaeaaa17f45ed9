package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mtecbridge/mtecbridge/pkg/export"
	"github.com/mtecbridge/mtecbridge/pkg/pvdata"
	"github.com/mtecbridge/mtecbridge/pkg/shell"
	"github.com/mtecbridge/mtecbridge/pkg/sink"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

func newTopologyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "List stations and devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			return sink.PrintTopology(cmd.OutOrStdout(), c.Topology())
		},
	}
}

func newStationCmd(g *globalFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "station",
		Short: "Show current data of a station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			if id == "" {
				stations := c.Stations()
				if len(stations) == 0 {
					return errors.New("account has no stations")
				}
				id = stations[0].ID
			}
			data, err := c.QueryStationData(cmd.Context(), id)
			if err != nil {
				return err
			}
			return sink.PrintStationData(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVarP(&id, "id", "i", "", "Station id (default: first station)")
	return cmd
}

func newDeviceCmd(g *globalFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Show current data of a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			data, err := c.QueryDeviceData(cmd.Context(), id)
			if err != nil {
				return err
			}
			return sink.PrintDeviceData(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVarP(&id, "id", "i", "", "Device id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

type exportFlags struct {
	period    string
	date      string
	name      string
	separator string
	file      string
}

func newExportCmd(g *globalFlags) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export historical usage data as CSV",
		Example: `  mtec export -t day -d 2024-03-01
  mtec export -t month -d 2023-01-01 -n Home -s , -f usage.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, g, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.period, "type", "t", "", "Type of data export: day, month, year or lifetime")
	flags.StringVarP(&f.date, "date", "d", "", "Start date [YYYY-MM-DD]")
	flags.StringVarP(&f.name, "name", "n", "", "Station name (only required with multiple stations)")
	flags.StringVarP(&f.separator, "separator", "s", ".", "Decimal separator")
	flags.StringVarP(&f.file, "file", "f", "", "Write data to FILE instead of stdout")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func runExport(cmd *cobra.Command, g *globalFlags, f *exportFlags) error {
	period := types.UsagePeriod(f.period)
	if !period.Valid() {
		return fmt.Errorf("invalid export type %q, expecting day, month, year or lifetime", f.period)
	}
	from, err := export.ParseDate(f.date)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := g.connect(ctx)
	if err != nil {
		return err
	}

	var station types.Station
	if f.name != "" {
		if station, err = c.StationByName(f.name); err != nil {
			return err
		}
	} else {
		stations := c.Stations()
		if len(stations) == 0 {
			return errors.New("account has no stations")
		}
		station = stations[0]
	}

	var out io.Writer = cmd.OutOrStdout()
	var file *os.File
	if f.file != "" {
		if file, err = os.Create(f.file); err != nil {
			return fmt.Errorf("unable to create file %q: %w", f.file, err)
		}
		defer file.Close()
		fmt.Fprintf(cmd.ErrOrStderr(), "Retrieving data and exporting to %q ...\n", f.file)
		out = file
	}

	err = export.Usage(ctx, c, sink.NewUsageWriter(out, f.separator), export.Options{
		StationID: station.ID,
		Period:    period,
		From:      from,
	})
	if err != nil {
		return err
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return fmt.Errorf("closing %q: %w", f.file, err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "done")
	}
	return nil
}

func newShellCmd(g *globalFlags) *cobra.Command {
	var floatFormat string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			return shell.New(c, floatFormat).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&floatFormat, "float-format", pvdata.DefaultFloatFormat, "Format of float metric values")
	return cmd
}
