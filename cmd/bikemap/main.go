package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/bikemap/internal/config"
	"github.com/joeblew999/bikemap/internal/server"
)

// Options defines all CLI flags and env vars for the bike map server.
// Flags: --host, --port, --data-dir, --web-dir, --catalog, --verbose
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir string `doc:"Directory for overlay data files" default:".data"`
	WebDir  string `doc:"Path to web/ directory, empty serves the embedded copy" default:""`
	Catalog string `doc:"Overlay catalog YAML, empty uses the built-in catalog" default:""`
	Verbose bool   `doc:"Enable debug logging" short:"v" default:"false"`
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func newServer(opts *Options, logger *log.Logger) (*server.Server, error) {
	catalog, err := config.Load(opts.Catalog)
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		WebDir:  opts.WebDir,
		Catalog: catalog,
		Logger:  logger,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := newLogger(os.Stderr, opts.Verbose)
		var httpServer *http.Server
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			srv, err := newServer(opts, logger)
			if err != nil {
				logger.Fatal("configuring server", "err", err)
			}
			if err := srv.Start(ctx); err != nil {
				logger.Fatal("starting map session", "err", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("bikemap server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server error", "err", err)
			}
		})

		hooks.OnStop(func() {
			defer cancel()
			if httpServer == nil {
				return
			}
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown", "err", err)
			}
		})
	})

	cli.Root().Use = "bikemap"
	cli.Root().Short = "Bike map overlays: bike lanes, crashes, schools and council districts"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, newLogger(io.Discard, false))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// stack subcommand: load the session headless and print the layer stack
	stackCmd := &cobra.Command{
		Use:   "stack",
		Short: "Load every overlay without serving and print the resulting layer stack",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			wait, _ := cmd.Flags().GetDuration("wait")
			logger := newLogger(os.Stderr, opts.Verbose)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := printStack(ctx, os.Stdout, opts, logger, wait); err != nil {
				logger.Error("stack", "err", err)
				os.Exit(1)
			}
		}),
	}
	stackCmd.Flags().Duration("wait", 30*time.Second, "How long to wait for overlays to settle")
	cli.Root().AddCommand(stackCmd)

	cli.Root().AddCommand(prepCommand())

	cli.Run()
}
