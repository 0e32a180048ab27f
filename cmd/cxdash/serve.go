package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cxdash/cxdash/internal/api"
	"github.com/cxdash/cxdash/pkg/audit"
	"github.com/cxdash/cxdash/pkg/backup"
	"github.com/cxdash/cxdash/pkg/central"
	"github.com/cxdash/cxdash/pkg/cli"
	"github.com/cxdash/cxdash/pkg/config"
	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/inventory"
	"github.com/cxdash/cxdash/pkg/manager"
	"github.com/cxdash/cxdash/pkg/util"
)

// stack is everything a command needs wired together.
type stack struct {
	manager *manager.Manager
	history *audit.History
	backups *backup.Store
	closers []func() error
}

func (s *stack) close() {
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			util.Warnf("shutdown: %v", err)
		}
	}
}

// buildStack assembles the full dependency graph from configuration.
func buildStack(cfg *config.Config) (*stack, error) {
	st := &stack{}

	history := audit.NewHistory(cfg.Audit.MaxHistory)
	if cfg.Audit.LogPath != "" {
		fileLogger, err := audit.NewFileLogger(cfg.Audit.LogPath, audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("audit file logging disabled: %v", err)
		} else {
			history.Forward(fileLogger)
			st.closers = append(st.closers, fileLogger.Close)
		}
	}
	st.history = history

	inv := inventory.NewStore()
	if cfg.SeedFile != "" {
		if err := inv.LoadSeed(cfg.SeedFile); err != nil {
			util.Warnf("inventory seed: %v", err)
		}
	}

	defaults := make([]cxapi.Credentials, 0, len(cfg.Credentials.Defaults))
	for _, pair := range cfg.Credentials.Defaults {
		defaults = append(defaults, cxapi.Credentials{Username: pair.Username, Password: pair.Password})
	}

	sessions := cxapi.NewSessionManager(cxapi.Options{
		APIVersion: cfg.API.Version,
		SSLVerify:  cfg.API.SSLVerify,
		SessionTTL: cfg.API.SessionTTL,
		Timeouts: cxapi.Timeouts{
			Short:  cfg.API.ShortTimeout,
			Medium: cfg.API.MediumTimeout,
			Long:   cfg.API.LongTimeout,
		},
		Defaults: defaults,
		Saved:    inv,
		Recorder: history,
	})

	backups, err := backup.NewStore(cfg.BackupDir)
	if err != nil {
		return nil, err
	}
	st.backups = backups

	var centralClient *central.Client
	if cfg.Central.Enabled() {
		centralClient = central.New(central.Config{
			BaseURL:      cfg.Central.BaseURL,
			ClientID:     cfg.Central.ClientID,
			ClientSecret: cfg.Central.ClientSecret,
			CustomerID:   cfg.Central.CustomerID,
		})
		util.Infof("central: API access enabled (%s)", cfg.Central.BaseURL)
	}

	probe := cxapi.NewCapabilityProbe()
	probe.SetTTL(cfg.Cache.CapabilityTTL)

	st.manager = manager.New(sessions, probe, inv, backups, centralClient)
	st.manager.SetTTLs(cfg.Cache.ListingTTL, cfg.Cache.OverviewTTL)
	return st, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := buildStack(cfg)
		if err != nil {
			return err
		}
		defer st.close()

		server := &http.Server{
			Addr:         cfg.Listen,
			Handler:      api.NewServer(st.manager, st.history, st.backups).Router(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			util.Infof("listening on %s", cfg.Listen)
			errCh <- server.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case sig := <-sigCh:
			util.Infof("received %s, shutting down", sig)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			util.Warnf("http shutdown: %v", err)
		}

		// Release every device session slot before exit; lingering sessions
		// are exactly what pushes small switches into their session limit.
		st.manager.Sessions.CleanupAll(shutdownCtx)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-sessions",
	Short: "Log out lingering device sessions for every inventoried switch",
	Long: `Connects to each directly managed switch in the inventory seed and cycles
a login/logout, which also prompts the device to reap idle sessions. Use
after a dashboard crash left session slots occupied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := buildStack(cfg)
		if err != nil {
			return err
		}
		defer st.close()

		ctx := cmd.Context()
		failures := 0
		tbl := cli.NewTable("SWITCH", "IP", "RESULT")
		for _, sw := range st.manager.Inventory.List() {
			if sw.Kind != inventory.KindDirect {
				continue
			}
			if _, err := st.manager.Sessions.Authenticate(ctx, sw.IP); err != nil {
				util.WithSwitch(sw.IP).Warnf("cleanup: %v", err)
				tbl.Row(sw.Name, sw.IP, cli.Red(err.Error()))
				failures++
				continue
			}
			st.manager.Sessions.Cleanup(ctx, sw.IP, true)
			tbl.Row(sw.Name, sw.IP, cli.Green("cleaned"))
		}
		tbl.Flush()
		if failures > 0 {
			return fmt.Errorf("cleanup failed for %d switches", failures)
		}
		return nil
	},
}
