package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/p3exporter/fritzbox_exporter/internal/fritzhome"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/promlog"
	"github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
	webflag "github.com/prometheus/exporter-toolkit/web/kingpinflag"
)

const exporterName = "fritzbox_exporter"

// login opens a session for every configured FRITZ!Box. Any failure is
// returned as is, the caller treats it as fatal.
func login(ctx context.Context, conns []ConnectionConfig, timeout time.Duration, logger log.Logger) ([]*connection, []*fritzhome.Session, error) {
	var (
		connections []*connection
		sessions    []*fritzhome.Session
	)

	for _, c := range conns {
		level.Info(logger).Log("msg", "connecting to FRITZ!Box", "fb_name", c.Name, "host", c.Hostname, "device_types", strings.Join(c.DeviceTypes, ","))

		session := fritzhome.New(fritzhome.Config{
			Host:      c.Hostname,
			Username:  c.Username,
			Password:  c.Password,
			SSLVerify: c.SSLVerify,
			Timeout:   timeout,
		}, log.With(logger, "fb_name", c.Name))

		loginCtx, cancel := context.WithTimeout(ctx, timeout)
		err := session.Login(loginCtx)
		cancel()
		if err != nil {
			return nil, sessions, err
		}

		sessions = append(sessions, session)
		connections = append(connections, &connection{
			name:        c.Name,
			deviceTypes: deviceTypes(c.DeviceTypes),
			hub:         session,
		})
	}

	return connections, sessions, nil
}

func logout(sessions []*fritzhome.Session, timeout time.Duration, logger log.Logger) {
	for _, s := range sessions {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := s.Logout(ctx); err != nil {
			level.Warn(logger).Log("msg", "logout failed", "err", err)
		}
		cancel()
	}
}

func main() {
	var (
		webConfig = webflag.AddFlags(kingpin.CommandLine, ":9787")

		configFile = kingpin.Flag("config.file", "Path to the FRITZ!Box configuration file").Default("fritzbox.yml").String()
		timeout    = kingpin.Flag("fritzbox.timeout", "Timeout for requests to a FRITZ!Box").Default("10s").Duration()
	)

	promlogConfig := &promlog.Config{}
	flag.AddFlags(kingpin.CommandLine, promlogConfig)
	kingpin.Version(version.Print(exporterName))
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()
	logger := promlog.New(promlogConfig)

	level.Info(logger).Log("msg", "starting "+exporterName, "version", version.Info())

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connections, sessions, err := login(ctx, cfg.Connections(logger), *timeout, logger)
	if err != nil {
		var loginErr *fritzhome.LoginError
		if errors.As(err, &loginErr) {
			level.Error(logger).Log("msg", "failed to log in to FRITZ!Box", "user", loginErr.Account, "err", err)
		} else {
			level.Error(logger).Log("msg", "failed to connect to FRITZ!Box", "err", err)
		}
		logout(sessions, *timeout, logger)
		os.Exit(1)
	}
	defer logout(sessions, *timeout, logger)

	exporter := &Exporter{
		connections: connections,
		timeout:     *timeout,
		logger:      logger,
	}

	prometheus.MustRegister(exporter)
	prometheus.MustRegister(version.NewCollector(exporterName))

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
             <head><title>FRITZ!Box Exporter</title></head>
             <body>
             <h1>FRITZ!Box Exporter</h1>
             <p><a href="/metrics">Metrics</a></p>
             </body>
             </html>`))
	})

	srv := &http.Server{}
	go func() {
		<-ctx.Done()
		level.Info(logger).Log("msg", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			level.Warn(logger).Log("msg", "HTTP server shutdown failed", "err", err)
		}
	}()

	if err := web.ListenAndServe(srv, webConfig, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		level.Error(logger).Log("msg", "Error starting HTTP server", "err", err)
		logout(sessions, *timeout, logger)
		os.Exit(1)
	}
}
