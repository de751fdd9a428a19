package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"captive-portal/controlplane/internal/service"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the portal, gateway protocol and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.env.ValidateServe(); err != nil {
				return err
			}

			handler, err := NewRouter(a.svc, service.NewLocalAuthenticator(a.repo), a.env, a.log)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              a.env.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go runSweeper(ctx, a)

			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("addr", a.env.Addr).Info("controlplane listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func runSweeper(ctx context.Context, a *app) {
	ticker := time.NewTicker(a.env.SweepInterval)
	defer ticker.Stop()
	opts := service.SweepOptions{PendingTTL: a.env.PendingTTL, IdleTimeout: a.env.IdleTimeout}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.svc.Sweep(ctx, opts); err != nil && ctx.Err() == nil {
				a.log.WithError(err).Error("sweep failed")
			}
		}
	}
}
