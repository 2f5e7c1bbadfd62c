package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/duome/duochat/pkg/datastore"
	"github.com/duome/duochat/pkg/logging"
	"github.com/duome/duochat/pkg/media"
	"github.com/duome/duochat/pkg/server"
	"github.com/duome/duochat/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (flags override its values)")
	listenAddr := flag.String("listen", cfg.ListenAddr, "HTTP + WebSocket bind address")
	metricsAddr := flag.String("metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database file path")
	dataDir := flag.String("data", cfg.DataDir, "Data directory for uploaded media")
	jwtSecret := flag.String("jwt-secret", "", "HMAC secret for bearer tokens (default: JWT_SECRET env)")
	exportUsers := flag.Bool("export-users", false, "Export all users as YAML and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid config file: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags that were set explicitly win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = *listenAddr
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "db":
			cfg.DBPath = *dbPath
		case "data":
			cfg.DataDir = *dataDir
		case "jwt-secret":
			cfg.JWTSecret = *jwtSecret
		}
	})

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	st, err := datastore.New(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	// Handle export command (run and exit)
	if *exportUsers {
		defer func() { _ = st.Close() }()
		data, err := server.ExportUsersYAML(st)
		if err != nil {
			slog.Error("export users", "err", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	md, err := media.NewStore(cfg.DataDir)
	if err != nil {
		slog.Error("init media store", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.Dependencies{Store: st, Media: md})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
