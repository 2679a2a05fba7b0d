// Package daemon implements the long-running metrics aggregation process:
// an HTTP server exposing /metrics, fed by an IPC server ingesting
// newline-delimited JSON records from local workload processes. It owns
// the PID file, state file, and socket file lifecycle so a supervising
// process can discover and stop it without a direct handle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sabaini/chopsticks/ipc"
	"github.com/sabaini/chopsticks/log"
	"github.com/sabaini/chopsticks/metrics"
)

// Config describes where the daemon listens and which lifecycle files it
// owns. All paths are absolute; the daemon never resolves relative paths
// itself.
type Config struct {
	Host       string
	Port       int
	SocketPath string
	PIDFile    string
	StateFile  string
}

// shutdownTimeout bounds how long Shutdown waits for the HTTP server and
// IPC server to finish in-flight work before giving up.
const shutdownTimeout = 5 * time.Second

// Daemon ties together the Prometheus aggregator, the IPC ingestion
// server, and the HTTP exposition server, plus the lifecycle files that
// let an external supervisor find and stop it.
type Daemon struct {
	cfg    Config
	logger *log.Logger

	aggregator *metrics.Aggregator
	ipcServer  *ipc.Server
	httpServer *http.Server
}

// New constructs a Daemon. Listen must be called before Run.
func New(cfg Config, logger *log.Logger) *Daemon {
	agg := metrics.NewAggregator()
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		aggregator: agg,
	}
}

// Listen binds the IPC socket, prepares the HTTP server (its listener is
// bound later, by Run), and writes the PID and state files. After Listen
// succeeds, a supervisor observing the PID file may consider the daemon
// started.
func (d *Daemon) Listen() error {
	d.ipcServer = ipc.NewServer(d.cfg.SocketPath, ipc.SinkFunc(d.aggregator.Observe), func(de *ipc.DecodeError) {
		d.logger.Warn("dropping malformed metric record", map[string]any{"error": de.Error()})
	})
	if err := d.ipcServer.Listen(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", d.aggregator.Handler())
	mux.HandleFunc("/", indexHandler)

	d.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port),
		Handler: mux,
	}

	if err := os.WriteFile(d.cfg.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("daemon: failed to write PID file %s: %w", d.cfg.PIDFile, err)
	}

	state := State{
		PID:       os.Getpid(),
		Host:      d.cfg.Host,
		Port:      d.cfg.Port,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := WriteState(d.cfg.StateFile, state); err != nil {
		return err
	}

	return nil
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html><head><title>Chopsticks Metrics</title></head>`+
		`<body><h1>Chopsticks Metrics Exporter</h1>`+
		`<p><a href="/metrics">Metrics endpoint</a></p></body></html>`)
}

// Run blocks serving both the IPC and HTTP listeners until ctx is
// cancelled, then performs a cooperative shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- d.ipcServer.Serve()
	}()

	go func() {
		d.logger.Info("metrics server listening", map[string]any{
			"addr": d.httpServer.Addr,
		})
		if err := d.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return d.Shutdown()
	case err := <-errCh:
		shutdownErr := d.Shutdown()
		if err != nil {
			return err
		}
		return shutdownErr
	}
}

// Shutdown stops the HTTP server and IPC server on a bounded timeout, and
// removes the PID, state, and socket files. It is safe to call even if the
// servers already exited on their own.
func (d *Daemon) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if d.httpServer != nil {
			_ = d.httpServer.Shutdown(shutdownCtx)
		}
		if d.ipcServer != nil {
			_ = d.ipcServer.Close()
		}
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		d.logger.Warn("shutdown exceeded bounded timeout, proceeding with cleanup", nil)
	}

	d.logger.Info("metrics server stopped", nil)

	var firstErr error
	for _, path := range []string{d.cfg.PIDFile, d.cfg.StateFile} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
