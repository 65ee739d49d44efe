package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/walletperm/internal/config"
	"github.com/opencode-ai/walletperm/internal/event"
	"github.com/opencode-ai/walletperm/internal/logging"
	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/internal/server"
	"github.com/opencode-ai/walletperm/internal/storage"
	"github.com/opencode-ai/walletperm/internal/wallet/local"
	"github.com/opencode-ai/walletperm/pkg/types"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
	serveWatch    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the permission server",
	Long: `Start the permissions manager over the local reference wallet and
expose it as an HTTP API.

Applications call the /ensure endpoints; a UI (for example
'walletperm watch --interactive') answers the requests.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default 4096)")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on (default 127.0.0.1)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Project directory to load walletperm.json from")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Report walletperm.json changes that need a restart")
}

// managerOptions converts the file config into manager options.
func managerOptions(cfg *types.Config) ([]permission.Option, error) {
	opts := []permission.Option{
		permission.WithConfig(permission.ConfigFromTypes(cfg.Permissions)),
		permission.WithLogger(logging.Component("permission")),
	}
	if cfg.CacheTTL != "" {
		d, err := time.ParseDuration(cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid cacheTTL: %w", err)
		}
		opts = append(opts, permission.WithCacheTTL(d))
	}
	if cfg.DefaultGrantTTL != "" {
		d, err := time.ParseDuration(cfg.DefaultGrantTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid defaultGrantTTL: %w", err)
		}
		opts = append(opts, permission.WithDefaultGrantTTL(d))
	}
	return opts, nil
}

// serverConfig applies the file config, then flags, to the server defaults.
func serverConfig(cfg *types.Config) *server.Config {
	sc := server.DefaultConfig()
	if cfg.Server != nil {
		if cfg.Server.Port != 0 {
			sc.Port = cfg.Server.Port
		}
		if cfg.Server.Hostname != "" {
			sc.Hostname = cfg.Server.Hostname
		}
		if cfg.Server.CORS != nil {
			sc.EnableCORS = *cfg.Server.CORS
		}
	}
	if servePort != 0 {
		sc.Port = servePort
	}
	if serveHostname != "" {
		sc.Hostname = serveHostname
	}
	return sc
}

// reportConfigChange announces permission flags on disk that differ from
// the ones the running manager was built with. The manager keeps its
// flags until serve is restarted. Each distinct change is reported once.
func reportConfigChange(mgr *permission.Manager, bus *event.Bus) func(*types.Config) {
	log := logging.Component("serve")
	last := mgr.Config()
	return func(cfg *types.Config) {
		pc := permission.ConfigFromTypes(cfg.Permissions)
		if pc == last {
			return
		}
		last = pc
		restart := pc != mgr.Config()
		if restart {
			log.Warn().Msg("permission config changed on disk, restart serve to apply it")
		}
		bus.Publish(event.Event{
			Type: event.ConfigUpdated,
			Data: event.ConfigUpdatedData{Permissions: pc, RestartRequired: restart},
		})
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir := serveDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	logging.Init(logging.FromConfig(appConfig.Log, logLevel))
	log := logging.Component("serve")

	if appConfig.AdminOriginator == "" {
		return fmt.Errorf("adminOriginator is not configured (set it in walletperm.json or WALLETPERM_ADMIN_ORIGINATOR)")
	}

	walletDir := paths.WalletPath()
	rootKey := ""
	if appConfig.Wallet != nil {
		if appConfig.Wallet.StorageDir != "" {
			walletDir = appConfig.Wallet.StorageDir
		}
		rootKey = appConfig.Wallet.RootKey
	}

	ctx := context.Background()
	w, err := local.New(ctx, storage.New(walletDir), rootKey, local.WithAdminOriginator(appConfig.AdminOriginator))
	if err != nil {
		return fmt.Errorf("open wallet: %w", err)
	}

	opts, err := managerOptions(appConfig)
	if err != nil {
		return err
	}
	mgr := permission.NewManager(w, appConfig.AdminOriginator, opts...)

	bus := event.NewBus()
	defer bus.Close()
	srv := server.New(serverConfig(appConfig), mgr, bus)

	if serveWatch {
		watcher, err := config.NewWatcher(workDir, reportConfigChange(mgr, bus))
		if err != nil {
			log.Warn().Err(err).Msg("config watcher disabled")
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	log.Info().
		Str("version", Version).
		Str("wallet", walletDir).
		Str("admin", appConfig.AdminOriginator).
		Msg("starting walletperm server")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
	return nil
}
