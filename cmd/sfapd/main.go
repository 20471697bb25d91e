// Command sfapd runs an SFAP server: load flags/config via Viper, build
// a server.Server with the selected middleware, optionally expose
// Prometheus metrics, and watch the user-limits file for hot reload.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/server"
	"github.com/sweet-bbq-sauce/sfap/server/fsauth"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "sfapd",
		Short: "SFAP server daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":4470", "address to listen on")
	flags.String("root", ".", "default sandbox root when no auth-passwd-file is given")
	flags.String("tls-cert", "", "TLS certificate file (enables TLS)")
	flags.String("tls-key", "", "TLS private key file (enables TLS)")
	flags.String("auth-passwd-file", "", "bcrypt passwd file for server/fsauth's reference auth middleware")
	flags.String("user-limits", "", "file of \"user limit\" lines, watched for hot reload")
	flags.String("metrics-addr", "", "if set, expose Prometheus metrics on this address")

	v.BindPFlags(flags)
	v.SetEnvPrefix("sfapd")
	v.AutomaticEnv()

	return cmd
}

func runServe(v *viper.Viper) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	opts := []server.Option{server.WithLogger(logger)}

	certFile, keyFile := v.GetString("tls-cert"), v.GetString("tls-key")
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("sfapd: loading TLS key pair: %w", err)
		}
		opts = append(opts, server.WithTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		}))
	}

	if path := v.GetString("auth-passwd-file"); path != "" {
		store, err := fsauth.NewStore(path)
		if err != nil {
			return fmt.Errorf("sfapd: loading auth passwd file: %w", err)
		}
		opts = append(opts, server.WithAuthMiddleware(store.Middleware()))
	} else {
		root, err := filepath.Abs(v.GetString("root"))
		if err != nil {
			return fmt.Errorf("sfapd: resolving root: %w", err)
		}
		opts = append(opts, server.WithAuthMiddleware(func(creds server.Credentials) server.AuthOutcome {
			out := server.DefaultAuthMiddleware(creds)
			if out.Result == protocol.AuthOK {
				out.Root, out.Home = root, root
			}
			return out
		}))
	}

	var collector *server.PrometheusCollector
	if addr := v.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		collector = server.NewPrometheusCollector(reg)
		opts = append(opts, server.WithMetrics(collector))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("sfapd: metrics listener failed", "err", err)
			}
		}()
		logger.Info("sfapd: metrics listening", "addr", addr)
	}

	srv, err := server.ListenAndServe(v.GetString("listen"), opts...)
	if err != nil {
		return fmt.Errorf("sfapd: listen: %w", err)
	}
	logger.Info("sfapd: listening", "addr", v.GetString("listen"))

	if path := v.GetString("user-limits"); path != "" {
		if err := loadUserLimits(srv, path); err != nil {
			logger.Warn("sfapd: loading user-limits", "err", err)
		}
		watchUserLimits(srv, logger, path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("sfapd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadUserLimits parses "user limit" lines (blank/#-prefixed skipped) and
// installs each via Server.SetUserLimit.
func loadUserLimits(srv *server.Server, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		limit, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		srv.SetUserLimit(fields[0], limit)
	}
	return scanner.Err()
}

// watchUserLimits reloads the user-limits file on change via fsnotify,
// the hot-reload path SPEC_FULL.md §1 describes for Server.SetUserLimit.
func watchUserLimits(srv *server.Server, logger *slog.Logger, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("sfapd: fsnotify unavailable", "err", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		logger.Warn("sfapd: watching user-limits file", "err", err)
		watcher.Close()
		return
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := loadUserLimits(srv, path); err != nil {
						logger.Warn("sfapd: reloading user-limits", "err", err)
					} else {
						logger.Info("sfapd: user-limits reloaded")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("sfapd: fsnotify error", "err", err)
			}
		}
	}()
}
