package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bradcypert/popshop/internal/store"
	"github.com/bradcypert/popshop/pkg/config"
	"github.com/bradcypert/popshop/pkg/engine"
	"github.com/bradcypert/popshop/pkg/logging"
)

var (
	servePort           int
	serveHost           string
	serveWatch          bool
	serveMaxRequestSize int64
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve <config-path>",
	Short: "Start the mock/proxy server",
	Long: `Start the server, loading rules from config-path (a YAML file or a
directory of YAML files).

Examples:
  popshop serve rules.yaml
  popshop serve ./rules --watch --port 9000`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP listen port")
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "HTTP listen host")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Watch config-path and hot-reload rules on change")
	serveCmd.Flags().Int64Var(&serveMaxRequestSize, "max-request-size", 1<<20, "Maximum request body size, in bytes")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	log := logging.New(logging.DefaultConfig())

	loader := config.NewLoader(log)
	rules, err := loader.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	total, mocks, proxies := rules.Counts()
	log.Info("loaded rules", "total", total, "mocks", mocks, "proxies", proxies)

	ruleStore := store.New(rules)

	srv := engine.NewServer(ruleStore,
		engine.WithHost(serveHost),
		engine.WithPort(servePort),
		engine.WithLogger(log),
		engine.WithMiddleware(engine.NewMiddlewareChain(
			engine.WithLimits(engine.Limits{MaxRequestSize: serveMaxRequestSize, MaxHeaderSize: 8 << 10}),
			engine.WithChainLogger(log),
		)),
	)

	var watcher *config.Watcher
	if serveWatch {
		watcher, err = config.NewWatcher(configPath, loader, ruleStore, log)
		if err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		watcher.Start()
		log.Info("watching configuration for changes", "path", configPath)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	if watcher != nil {
		_ = watcher.Stop()
	}
	return srv.Stop()
}
