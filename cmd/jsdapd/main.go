package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chromedap/bridge/adapter"
	"github.com/chromedap/bridge/dapserver"
	"github.com/chromedap/bridge/transform"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "jsdapd",
		Short:         "debug-adapter bridge between DAP clients and RDP script runtimes",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return runStdio(cmd.Context())
		},
	}
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	return cmd
}

// runStdio serves exactly one DAP session over stdin/stdout, the
// transport every DAP-capable IDE expects when it spawns the adapter
// directly rather than connecting to a TCP port.
func runStdio(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	conn := dapserver.NewConn(os.Stdin, os.Stdout)
	defer conn.Close()

	a := adapter.NewAdapter(
		transform.NewIdentityPathTransformer(),
		transform.NewNoopSourceMapTransformer(),
		transform.NewLineColTransformer(true, true),
	)

	if err := a.Start(ctx, conn); err != nil {
		logrus.WithError(err).Error("session ended with error")
		return err
	}
	return nil
}
