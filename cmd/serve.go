package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PolarWolf314/syc/internal/ui"
	"github.com/PolarWolf314/syc/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveLogsRoot string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from gate.toml, 127.0.0.1:7938)")
	serveCmd.Flags().StringVar(&serveLogsRoot, "logs-root", "", "access log directory (default from gate.toml)")
}

// resetServeCommandState resets the serve command's global state for testing.
func resetServeCommandState() {
	serveAddr = ""
	serveLogsRoot = ""
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync gate",
	Long: `Serves the datasites root over HTTP. Every request is checked against the
syft.pub.yaml rules and recorded in the requester's access log.

The caller's identity is taken from the X-User-Email header. Stop with Ctrl-C.

Examples:
  syc serve
  syc serve --addr 0.0.0.0:7938 --logs-root /var/log/syc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting serve command")

		env, err := currentEnv()
		if err != nil {
			fmt.Println(formatError(err))
			return reportedError{err}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = workflows.Serve(ctx, env, workflows.ServeOptions{
			Addr:     serveAddr,
			LogsRoot: serveLogsRoot,
			Ready: func(addr string) {
				fmt.Println(success("Gate listening on " + ui.Path.Sprint(addr)))
			},
		})
		if err != nil {
			fmt.Println(formatError(err))
			return reportedError{err}
		}
		fmt.Println(success("Gate stopped"))
		return nil
	},
}
