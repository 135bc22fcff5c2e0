package app

import (
	"context"
	"fmt"
	"log/slog"

	"csv-share-access/internal/admin"
	"csv-share-access/internal/audit"
	"csv-share-access/internal/blob"
	"csv-share-access/internal/cleanup"
	"csv-share-access/internal/config"
	"csv-share-access/internal/crypto"
	"csv-share-access/internal/email"
	"csv-share-access/internal/filestore"
	"csv-share-access/internal/links"
	"csv-share-access/internal/notify"
	"csv-share-access/internal/ratelimit"
	"csv-share-access/internal/recovery"
	"csv-share-access/internal/routes"
	"csv-share-access/internal/storage"
)

// App is the wired application around one storage provider.
type App struct {
	Server   *routes.Server
	Notifier *notify.Async
}

// notifier builds the enabled notification channels.
func notifier(cfg *config.Config, store storage.Provider) notify.Notifier {
	var channels notify.Multi
	if cfg.Push.Ready() {
		channels = append(channels, notify.NewPush(store, cfg.Push))
	}
	if cfg.Email.Enabled {
		channels = append(channels, notify.NewMailer(email.NewClient(cfg.Email), cfg.Admin.Email))
	}
	if len(channels) == 0 {
		slog.Info("No notification channels enabled")
		return notify.Nop{}
	}
	return channels
}

// New wires every collaborator for cfg. The caller owns store.
func New(ctx context.Context, cfg *config.Config, store storage.Provider) (*App, error) {
	signer, err := crypto.NewSigner(cfg.CookieSecret)
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewCipher(cfg.EncryptionMasterKey)
	if err != nil {
		return nil, err
	}
	blobs, err := blob.NewDiskStore(cfg.Blob.Path)
	if err != nil {
		return nil, err
	}
	manager, err := admin.NewManager(store, signer, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(ctx, cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	vault := filestore.NewVault(store, blobs, cipher)
	controller := links.NewController(store, vault)
	async := notify.NewAsync(notifier(cfg, store))

	return &App{
		Server: &routes.Server{
			Config:   cfg,
			Store:    store,
			Signer:   signer,
			Admin:    manager,
			Links:    controller,
			Recovery: recovery.NewService(store, controller),
			Files:    vault,
			Limiter:  limiter,
			Audit:    audit.NewLogger(store),
			Notifier: async,
			Janitor:  cleanup.NewJanitor(store, cfg.Retention),
		},
		Notifier: async,
	}, nil
}

// Close stops the janitor, drains pending notifications and releases the
// rate limiter.
func (a *App) Close() error {
	a.Server.Janitor.Stop()
	a.Notifier.Wait()
	return a.Server.Limiter.Close()
}
