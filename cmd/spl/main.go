package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"github.com/urfave/cli/v2"

	"github.com/oarkflow/spl"
	"github.com/oarkflow/spl/pkg/config"
	"github.com/oarkflow/spl/pkg/repl"
	"github.com/oarkflow/spl/pkg/server"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	sourceFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "eval",
			Aliases: []string{"e"},
			Usage:   "Inline source to use instead of a file",
		},
	}
	return &cli.App{
		Name:      "spl",
		Usage:     "Scan, parse and run SPL scripts",
		ArgsUsage: "[script]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file (BCL, YAML, or JSON)",
				EnvVars: []string{"SPL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a script file",
				ArgsUsage: "<script>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "trace", Usage: "Log every user function call"},
					&cli.BoolFlag{Name: "log-execution", Usage: "Log run outcomes at info level"},
				}, sourceFlags...),
				Action: runScript,
			},
			{
				Name:      "tokens",
				Usage:     "Print the token stream of a script",
				ArgsUsage: "<script>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Emit tokens as JSON"},
				}, sourceFlags...),
				Action: printTokens,
			},
			{
				Name:      "parse",
				Usage:     "Parse a script and print its syntax tree",
				ArgsUsage: "<script>",
				Flags:     sourceFlags,
				Action:    printProgram,
			},
			{
				Name:   "builtins",
				Usage:  "List the registered builtin functions",
				Action: listBuiltins,
			},
			{
				Name:  "repl",
				Usage: "Start an interactive session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "history", Usage: "History file path"},
				},
				Action: startREPL,
			},
			{
				Name:  "serve",
				Usage: "Start the playground HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address, overrides the config"},
					&cli.BoolFlag{Name: "access-log", Value: true, Usage: "Log every HTTP request"},
				},
				Action: startServer,
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return cli.ShowAppHelp(c)
			}
			return runScript(c)
		},
	}
}

// setup loads the configuration, applies its runtime section and returns a
// logger writing to stderr.
func setup(c *cli.Context) (*config.Config, *log.Logger, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	cfg.Apply()
	return cfg, config.NewLogger(cfg.Log, os.Stderr), nil
}

func readSource(c *cli.Context) (string, string, error) {
	if src := c.String("eval"); src != "" {
		return src, "<eval>", nil
	}
	path := c.Args().First()
	if path == "" {
		return "", "", &spl.SPLError{Code: spl.ErrCodeInput, Message: "a script path or --eval is required"}
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
		path = "<stdin>"
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", "", &spl.SPLError{Code: spl.ErrCodeInput, Message: "cannot read " + path, Cause: err}
	}
	return string(data), path, nil
}

func runScript(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	source, name, err := readSource(c)
	if err != nil {
		return err
	}
	runtime := spl.RuntimeConfig{
		LogExecution: cfg.Runtime.LogExecution || c.Bool("log-execution"),
		TraceCalls:   cfg.Runtime.TraceCalls || c.Bool("trace"),
	}
	logger.Debug().Str("script", name).Msg("running script")
	_, err = spl.Exec(source,
		spl.WithOutput(c.App.Writer),
		spl.WithLogger(logger),
		spl.WithRuntimeConfig(runtime),
	)
	return err
}

func printTokens(c *cli.Context) error {
	if _, _, err := setup(c); err != nil {
		return err
	}
	source, _, err := readSource(c)
	if err != nil {
		return err
	}
	tokens, err := spl.Tokenize(source)
	if c.Bool("json") {
		data, merr := json.Marshal(tokens)
		if merr != nil {
			return merr
		}
		fmt.Fprintln(c.App.Writer, string(data))
		return err
	}
	for _, tok := range tokens {
		fmt.Fprintf(c.App.Writer, "%d:%d\t%s\t%q\n", tok.Line, tok.Column, tok.Type, tok.Literal)
	}
	return err
}

func printProgram(c *cli.Context) error {
	if _, _, err := setup(c); err != nil {
		return err
	}
	source, _, err := readSource(c)
	if err != nil {
		return err
	}
	program, err := spl.Parse(source)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, program.String())
	return nil
}

func listBuiltins(c *cli.Context) error {
	if _, _, err := setup(c); err != nil {
		return err
	}
	for _, name := range spl.DefaultRegistry().Names() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func startREPL(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	history := cfg.REPL.HistoryFile
	if h := c.String("history"); h != "" {
		history = h
	}
	return repl.Start(repl.Config{
		Prompt:      cfg.REPL.Prompt,
		HistoryFile: history,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Logger:      logger,
	})
}

func startServer(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	addr := cfg.Server.Address
	if a := c.String("addr"); a != "" {
		addr = a
	}
	srv, err := server.NewServer(server.Config{
		Version:        cfg.Server.Version,
		CacheSize:      cfg.Server.CacheSize,
		MaxSourceBytes: cfg.Server.MaxSourceBytes,
		JournalFile:    cfg.Server.JournalFile,
		Logger:         logger,
		AccessLog:      c.Bool("access-log"),
	})
	if err != nil {
		return err
	}
	return serveUntilSignal(srv, addr, logger)
}

func serveUntilSignal(srv *server.Server, addr string, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(addr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info().Msg("received signal, initiating graceful shutdown")
		if err := srv.Shutdown(); err != nil {
			return err
		}
		select {
		case err := <-serverErr:
			if err != nil {
				return err
			}
			logger.Info().Msg("server shut down gracefully")
			return nil
		case <-time.After(30 * time.Second):
			return fmt.Errorf("shutdown timeout reached")
		}
	}
}
