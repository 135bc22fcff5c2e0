// Package links controls viewer access to share links: one-time link
// passwords, per-device tokens and link administration.
package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"csv-share-access/internal/crypto"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"
)

var (
	ErrLinkNotFound        = errors.New("link not found")
	ErrLinkInactive        = errors.New("link is inactive")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrNoCurrentFile       = errors.New("no current file, upload a CSV first")
	ErrPasswordAlreadyUsed = errors.New("link password has already been used")
	ErrRequestAlreadyUsed  = errors.New("recovery request has already been used")
)

// Store is the part of storage.Provider the controller needs.
type Store interface {
	CreateLink(ctx context.Context, link storage.AccessLink) error
	GetLink(ctx context.Context, id string) (*storage.AccessLink, error)
	ListLinks(ctx context.Context) ([]storage.AccessLink, error)
	UpdateLinkName(ctx context.Context, id string, name string) error
	UpdateLinkActive(ctx context.Context, id string, active bool) error
	UpdateLinkOptions(ctx context.Context, id string, opts dataset.DisplayOptions) error
	DeleteLink(ctx context.Context, id string) error
	MarkPasswordUsed(ctx context.Context, id string, at time.Time) (bool, error)

	CreateDevice(ctx context.Context, device storage.LinkDevice) error
	FindDevice(ctx context.Context, linkID, tokenHash, fingerprintHash string) (*storage.LinkDevice, error)
	TouchDevice(ctx context.Context, id string, at time.Time) error
	ListDevices(ctx context.Context, linkID string) ([]storage.LinkDevice, error)
	DeleteDevice(ctx context.Context, id string) error

	ConsumeRecoveryRequest(ctx context.Context, id string, at time.Time) (bool, error)
}

// FileResolver returns the current file, or nil when none is set.
type FileResolver interface {
	Current(ctx context.Context) (*storage.StoredFile, error)
}

type PasswordCheck struct {
	Valid       bool
	AlreadyUsed bool
}

// Activation describes a device being authorized for a link. Exactly one of
// MarkPasswordUsed or ApprovedRequestID is normally set.
type Activation struct {
	LinkID            string
	Fingerprint       string
	MarkPasswordUsed  bool
	ApprovedRequestID string
}

type NewLink struct {
	Name           string
	Password       string
	Criteria       []dataset.Criterion
	DisplayOptions dataset.DisplayOptions
}

// dummyHash is checked against when there is no link, so a missing link
// costs the same scrypt run as a wrong password.
var dummyHash = strings.Repeat("0", 64)

type Controller struct {
	store Store
	files FileResolver

	now    func() time.Time
	verify func(secret, salt, expectedHex string) bool
	logger *slog.Logger
}

func NewController(store Store, files FileResolver) *Controller {
	return &Controller{
		store:  store,
		files:  files,
		now:    time.Now,
		verify: crypto.VerifyPassword,
		logger: slog.With("component", "links"),
	}
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return sentinel
	}
	return err
}

// VerifyLinkPassword reports whether password matches the link and whether
// the link password has already been spent. A missing or inactive link
// yields the zero PasswordCheck after the same amount of hashing work.
func (c *Controller) VerifyLinkPassword(ctx context.Context, linkID, password string) (PasswordCheck, error) {
	link, err := c.store.GetLink(ctx, linkID)
	if errors.Is(err, storage.ErrNotFound) {
		c.verify(password, linkID, dummyHash)
		return PasswordCheck{}, nil
	}
	if err != nil {
		return PasswordCheck{}, err
	}
	valid := c.verify(password, link.PasswordSalt, link.PasswordHash)
	if !link.Active {
		return PasswordCheck{}, nil
	}
	return PasswordCheck{
		Valid:       valid,
		AlreadyUsed: link.PasswordUsedAt != nil,
	}, nil
}

// ActivateDevice issues a device token for a link. The device row is written
// first, then the one-time guards run as conditional updates. A device whose
// guard loses is deleted again and the matching conflict error returned.
func (c *Controller) ActivateDevice(ctx context.Context, a Activation) (string, error) {
	token, err := crypto.GenerateToken()
	if err != nil {
		return "", err
	}
	now := c.now()
	device := storage.LinkDevice{
		ID:              utils.NewID(),
		LinkID:          a.LinkID,
		TokenHash:       crypto.TokenDigest(token),
		FingerprintHash: a.Fingerprint,
		CreatedAt:       now,
	}
	if a.ApprovedRequestID != "" {
		device.ApprovedRequestID = &a.ApprovedRequestID
	}

	if err := c.store.CreateDevice(ctx, device); err != nil {
		if a.ApprovedRequestID != "" && errors.Is(err, storage.ErrDuplicate) {
			return "", ErrRequestAlreadyUsed
		}
		return "", fmt.Errorf("failed to create device: %w", err)
	}

	if a.MarkPasswordUsed {
		won, err := c.store.MarkPasswordUsed(ctx, a.LinkID, now)
		if err != nil || !won {
			c.compensate(ctx, device.ID)
			if err != nil {
				return "", fmt.Errorf("failed to mark password used: %w", err)
			}
			return "", ErrPasswordAlreadyUsed
		}
	}

	if a.ApprovedRequestID != "" {
		won, err := c.store.ConsumeRecoveryRequest(ctx, a.ApprovedRequestID, now)
		if err != nil || !won {
			c.compensate(ctx, device.ID)
			if err != nil {
				return "", fmt.Errorf("failed to consume recovery request: %w", err)
			}
			return "", ErrRequestAlreadyUsed
		}
	}

	c.logger.Info("Device activated", "link_id", a.LinkID, "device_id", device.ID, "recovery", a.ApprovedRequestID != "")
	return token, nil
}

// compensate removes a device whose activation lost its guard. It runs even
// when the request context is already cancelled.
func (c *Controller) compensate(ctx context.Context, deviceID string) {
	if err := c.store.DeleteDevice(context.WithoutCancel(ctx), deviceID); err != nil {
		c.logger.Error("Failed to remove device after lost activation", "device_id", deviceID, "error", err)
	}
}

// ValidateDevice checks a device token against the link and fingerprint.
func (c *Controller) ValidateDevice(ctx context.Context, linkID, token, fingerprint string) bool {
	if linkID == "" || token == "" || fingerprint == "" {
		return false
	}
	device, err := c.store.FindDevice(ctx, linkID, crypto.TokenDigest(token), fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		c.logger.Error("Failed to look up device", "link_id", linkID, "error", err)
		return false
	}
	if err := c.store.TouchDevice(ctx, device.ID, c.now()); err != nil {
		c.logger.Warn("Failed to update device last use", "device_id", device.ID, "error", err)
	}
	return true
}
