// Package shell is an interactive prompt for browsing the portal.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/mtec"
	"github.com/mtecbridge/mtecbridge/pkg/pvdata"
	"github.com/mtecbridge/mtecbridge/pkg/sink"
)

// ErrExit is returned by HandleCommand when the user asked to leave.
var ErrExit = errors.New("exit")

const helpText = `Commands:
  topology        - List stations and devices
  stations        - List stations
  station [<id>]  - Show current data of a station (default: first station)
  device <id>     - Show current data of a device
  metrics <id>    - Show normalized metrics of a station or device
  help            - Show this help
  exit            - Leave the shell
`

// Shell runs commands against the portal.
type Shell struct {
	api         mtec.API
	floatFormat string
}

// New returns a Shell using api. The topology must already be loaded.
func New(api mtec.API, floatFormat string) *Shell {
	if floatFormat == "" {
		floatFormat = pvdata.DefaultFloatFormat
	}
	return &Shell{api: api, floatFormat: floatFormat}
}

// HandleCommand runs a single command line and writes its output to w.
func (s *Shell) HandleCommand(ctx context.Context, w io.Writer, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "topology":
		return sink.PrintTopology(w, s.api.Topology())

	case "stations":
		return sink.PrintStations(w, s.api.Topology())

	case "station":
		id, err := s.stationID(parts[1:])
		if err != nil {
			return err
		}
		data, err := s.api.QueryStationData(ctx, id)
		if err != nil {
			return err
		}
		return sink.PrintStationData(w, data)

	case "device":
		if len(parts) < 2 {
			return errors.New("usage: device <id>")
		}
		if _, _, ok := s.api.Topology().Device(parts[1]); !ok {
			return fmt.Errorf("%w: %q", mtec.ErrUnknownDevice, parts[1])
		}
		data, err := s.api.QueryDeviceData(ctx, parts[1])
		if err != nil {
			return err
		}
		return sink.PrintDeviceData(w, data)

	case "metrics":
		if len(parts) < 2 {
			return errors.New("usage: metrics <id>")
		}
		return s.metrics(ctx, w, parts[1])

	case "help":
		_, err := io.WriteString(w, helpText)
		return err

	case "exit", "quit":
		return ErrExit

	default:
		return fmt.Errorf("unknown command: %s (try 'help')", parts[0])
	}
}

func (s *Shell) stationID(args []string) (string, error) {
	topo := s.api.Topology()
	if len(args) == 0 {
		if len(topo.Stations) == 0 {
			return "", errors.New("no stations")
		}
		return topo.Stations[0].ID, nil
	}
	if _, ok := topo.Station(args[0]); !ok {
		return "", fmt.Errorf("%w: %q", mtec.ErrUnknownStation, args[0])
	}
	return args[0], nil
}

func (s *Shell) metrics(ctx context.Context, w io.Writer, id string) error {
	topo := s.api.Topology()
	if _, ok := topo.Station(id); ok {
		data, err := s.api.QueryStationData(ctx, id)
		if err != nil {
			return err
		}
		return sink.PrintMetrics(w, pvdata.StationMetrics(data), s.floatFormat)
	}
	if _, _, ok := topo.Device(id); ok {
		data, err := s.api.QueryDeviceData(ctx, id)
		if err != nil {
			return err
		}
		return sink.PrintMetrics(w, pvdata.DeviceMetrics(data), s.floatFormat)
	}
	return fmt.Errorf("unknown station or device: %q", id)
}

func (s *Shell) stationIDs(string) []string {
	var ids []string
	for _, st := range s.api.Topology().Stations {
		ids = append(ids, st.ID)
	}
	return ids
}

func (s *Shell) deviceIDs(string) []string {
	var ids []string
	for _, st := range s.api.Topology().Stations {
		for _, d := range st.Devices {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func (s *Shell) completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("topology"),
		readline.PcItem("stations"),
		readline.PcItem("station", readline.PcItemDynamic(s.stationIDs)),
		readline.PcItem("device", readline.PcItemDynamic(s.deviceIDs)),
		readline.PcItem("metrics",
			readline.PcItemDynamic(s.stationIDs),
			readline.PcItemDynamic(s.deviceIDs),
		),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// HistoryFile returns the path of the shell history, creating its directory.
// An empty path disables history.
func HistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "mtecbridge")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return ""
	}
	return filepath.Join(dir, "shell_history")
}

// Run reads commands until exit, EOF or ctx is done. Command errors are
// printed and don't end the loop.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mtec> ",
		HistoryFile:     HistoryFile(),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintln(out, "type 'help' for commands")

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			// io.EOF
			return nil
		}

		err = s.HandleCommand(ctx, out, line)
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			log.Ctx(ctx).DebugContext(ctx, "shell command failed", slog.String("command", line), slog.Any("error", err))
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}
