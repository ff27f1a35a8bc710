package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"pplx-bridge/internal/catalog"
	"pplx-bridge/internal/config"
	"pplx-bridge/internal/mcpserver"
	"pplx-bridge/internal/server"
	"pplx-bridge/internal/service"
	"pplx-bridge/internal/upstream"
)

const serveUsage = `Usage:
  pplx-bridge serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (optional; environment-only without it)
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	var mcpHandler http.Handler
	if cfg.MCP.Mount {
		// The REST server's key auth already covers the mounted path.
		mcpSrv, err := mcpserver.New(svc, cfg.Defaults, cfg.MCP, "")
		if err != nil {
			return err
		}
		mcpHandler = mcpSrv.Handler()
	}

	srv, err := server.New(cfg, svc, mcpHandler)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

func buildService(cfg config.Config) (*service.Service, error) {
	client, err := upstream.New(cfg.Upstream, nil)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(cfg.Defaults.Model, cfg.Models.Strict)
	if err != nil {
		return nil, err
	}

	return service.New(client, cat, cfg.Defaults), nil
}
