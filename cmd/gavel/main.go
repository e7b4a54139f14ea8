// Command gavel serves retrieval-augmented question answering over
// Sri Lankan legal documents.
//
// Usage:
//
//	gavel serve --config gavel.yaml
//	gavel validate --config gavel.yaml
//	gavel chat --config gavel.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	gavel "github.com/lexlanka/gavel"
	"github.com/lexlanka/gavel/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Emit the configuration JSON schema."`
	Chat     ChatCmd     `cmd:"" help:"Chat with the pipeline from the terminal."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"gavel.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text, json)." default:"text"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("gavel %s\n", gavel.Version)
	return nil
}

// ValidateCmd loads the configuration and reports the first problem.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	fmt.Printf("%s: configuration valid\n", cli.Config)
	return nil
}

// loadConfig reads .env, the YAML file and the environment overlay.
func loadConfig(path string) (*config.Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

// setupLogging installs the process-wide slog handler.
func setupLogging(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("gavel"),
		kong.Description("Retrieval-augmented legal document QA service."),
		kong.UsageOnError(),
	)

	if err := setupLogging(cli.LogLevel, cli.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
