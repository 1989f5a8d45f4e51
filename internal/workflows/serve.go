package workflows

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PolarWolf314/syc/internal/configs"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/gate"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions configures the serve workflow.
type ServeOptions struct {
	// Addr overrides listen_addr from gate.toml.
	Addr string

	// LogsRoot overrides logs_root from gate.toml.
	LogsRoot string

	// Ready, if set, is called with the bound address once the gate listens.
	Ready func(addr string)
}

// Serve runs the sync gate over HTTP until ctx is canceled, then shuts down
// gracefully and closes the access log.
//
// Returns ErrConfig if gate.toml is malformed.
// Returns ErrIO if the address cannot be bound.
func Serve(ctx context.Context, env Env, opts ServeOptions) error {
	store, err := env.keys()
	if err != nil {
		return err
	}
	gateConfig, err := configs.LoadGateConfig(env.Settings)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		gateConfig.ListenAddr = opts.Addr
	}
	if opts.LogsRoot != "" {
		gateConfig.LogsRoot = opts.LogsRoot
	}

	g, err := gate.New(gate.Config{Settings: env.Settings, Gate: gateConfig, Keys: store, Log: env.Log})
	if err != nil {
		return err
	}
	defer g.Close()
	env.Log.Infof("Loaded %d rule file(s) from %s", g.ACL().Table().Len(), env.Settings.DataRoot)

	ln, err := net.Listen("tcp", gateConfig.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listening on %s: %v", kerrors.ErrIO, gateConfig.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           g.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%w: serving: %v", kerrors.ErrIO, err)
	case <-ctx.Done():
	}

	env.Log.Infof("Shutting down gate on %s", ln.Addr())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%w: shutdown: %v", kerrors.ErrIO, err)
	}
	return nil
}
