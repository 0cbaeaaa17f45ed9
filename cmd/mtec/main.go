package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mtecbridge/mtecbridge/pkg/common"
	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/mtec"
)

type globalFlags struct {
	email       string
	password    string
	demoAccount string
	baseURL     string
	timeout     time.Duration
	verbose     bool
}

// connect logs in and loads the topology.
func (g *globalFlags) connect(ctx context.Context) (*mtec.Client, error) {
	c := mtec.New(mtec.Options{
		BaseURL:     g.baseURL,
		Email:       g.email,
		Password:    g.password,
		DemoAccount: g.demoAccount,
		Timeout:     g.timeout,
	})
	if err := c.LoadTopology(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "mtec",
		Short:         "Command line client for the M-TEC Energybutler portal",
		Version:       common.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			log.SetDefaultLogLevel(level)
			log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.email, "email", common.Getenv("MTEC_EMAIL", ""), "Portal account email (or set MTEC_EMAIL, empty uses the demo account)")
	flags.StringVar(&g.password, "password", common.Getenv("MTEC_PASSWORD", ""), "Portal account password (or set MTEC_PASSWORD)")
	flags.StringVar(&g.demoAccount, "demo-account", common.Getenv("MTEC_DEMO_ACCOUNT", mtec.DefaultDemoAccount), "Demo account used when no email is set (or set MTEC_DEMO_ACCOUNT)")
	flags.StringVar(&g.baseURL, "base-url", common.Getenv("MTEC_BASE_URL", mtec.DefaultBaseURL), "Portal API base URL (or set MTEC_BASE_URL)")
	flags.DurationVar(&g.timeout, "timeout", 30*time.Second, "Timeout of portal requests")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newTopologyCmd(g),
		newStationCmd(g),
		newDeviceCmd(g),
		newExportCmd(g),
		newShellCmd(g),
	)
	return root
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR -", err)
		cancel()
		os.Exit(1)
	}
}
