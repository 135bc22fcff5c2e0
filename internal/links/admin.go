package links

import (
	"context"
	"fmt"

	"csv-share-access/internal/crypto"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"
)

// CreateLink mints a link against the current file. Criteria naming columns
// the file does not have are dropped.
func (c *Controller) CreateLink(ctx context.Context, n NewLink) (*storage.AccessLink, error) {
	file, err := c.files.Current(ctx)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrNoCurrentFile
	}

	salt, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}
	hash, err := crypto.PasswordHash(n.Password, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to hash link password: %w", err)
	}

	fileID := file.ID
	link := storage.AccessLink{
		ID:             utils.NewID(),
		FileID:         &fileID,
		Name:           n.Name,
		Criteria:       storage.JSON[[]dataset.Criterion]{V: dataset.SanitizeCriteria(n.Criteria, file.Schema.V)},
		PasswordSalt:   salt,
		PasswordHash:   hash,
		Active:         true,
		DisplayOptions: storage.JSON[dataset.DisplayOptions]{V: n.DisplayOptions},
		CreatedAt:      c.now(),
	}
	if err := c.store.CreateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	c.logger.Info("Link created", "link_id", link.ID, "file_id", fileID, "criteria", len(link.Criteria.V))
	return &link, nil
}

func (c *Controller) ListLinks(ctx context.Context) ([]storage.AccessLink, error) {
	return c.store.ListLinks(ctx)
}

func (c *Controller) GetLink(ctx context.Context, id string) (*storage.AccessLink, error) {
	link, err := c.store.GetLink(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrLinkNotFound)
	}
	return link, nil
}

// ActiveLink returns the link if it exists and is enabled.
func (c *Controller) ActiveLink(ctx context.Context, id string) (*storage.AccessLink, error) {
	link, err := c.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if !link.Active {
		return nil, ErrLinkInactive
	}
	return link, nil
}

func (c *Controller) Rename(ctx context.Context, id, name string) error {
	return notFound(c.store.UpdateLinkName(ctx, id, name), ErrLinkNotFound)
}

func (c *Controller) SetActive(ctx context.Context, id string, active bool) error {
	return notFound(c.store.UpdateLinkActive(ctx, id, active), ErrLinkNotFound)
}

func (c *Controller) UpdateOptions(ctx context.Context, id string, opts dataset.DisplayOptions) error {
	return notFound(c.store.UpdateLinkOptions(ctx, id, opts), ErrLinkNotFound)
}

// DeleteLink removes the link with its devices and recovery requests.
func (c *Controller) DeleteLink(ctx context.Context, id string) error {
	return notFound(c.store.DeleteLink(ctx, id), ErrLinkNotFound)
}

// ListDevices lists the devices of a link, or of all links when linkID is empty.
func (c *Controller) ListDevices(ctx context.Context, linkID string) ([]storage.LinkDevice, error) {
	return c.store.ListDevices(ctx, linkID)
}

func (c *Controller) RevokeDevice(ctx context.Context, id string) error {
	return notFound(c.store.DeleteDevice(ctx, id), ErrDeviceNotFound)
}
