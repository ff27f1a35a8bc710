package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"pplx-bridge/internal/mcpserver"
)

const mcpUsage = `Usage:
  pplx-bridge mcp [--config <path>] [--transport stdio|http]

Flags:
  --config    string   Path to YAML configuration file (optional; environment-only without it)
  --transport string   Override the MCP transport from configuration`

func mcpCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, mcpUsage)
	}

	var cfgPath string
	var transport string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&transport, "transport", "", "override MCP transport")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse mcp flags: %w", err)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if transport != "" {
		cfg.MCP.Transport = transport
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	mcpSrv, err := mcpserver.New(svc, cfg.Defaults, cfg.MCP, cfg.Server.APIKey)
	if err != nil {
		return err
	}

	if cfg.MCP.Transport == "http" {
		return mcpSrv.ServeHTTP(ctx)
	}
	return mcpSrv.ServeStdio()
}
