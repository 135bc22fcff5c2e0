// Package filestore keeps uploaded CSV files encrypted at rest. Ciphertext
// lives in the blob store, metadata and key material parameters in SQL.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"csv-share-access/internal/crypto"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"
)

var ErrFileNotFound = errors.New("file not found")

type Store interface {
	CreateFile(ctx context.Context, file storage.StoredFile) error
	GetFile(ctx context.Context, id string) (*storage.StoredFile, error)
	ListFiles(ctx context.Context) ([]storage.StoredFile, error)
	UpdateFileMessage(ctx context.Context, id string, message *string) error
	DeleteFile(ctx context.Context, id string) error

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Blobs is satisfied by *blob.Store.
type Blobs interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

type Upload struct {
	Filename      string
	Payload       []byte
	Schema        dataset.Schema
	RowCount      int
	UpdateMessage string
}

type Vault struct {
	store  Store
	blobs  Blobs
	cipher *crypto.Cipher

	now    func() time.Time
	logger *slog.Logger
}

func NewVault(store Store, blobs Blobs, cipher *crypto.Cipher) *Vault {
	return &Vault{
		store:  store,
		blobs:  blobs,
		cipher: cipher,
		now:    time.Now,
		logger: slog.With("component", "filestore"),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Store encrypts and persists an upload. The first upload becomes the
// current file.
func (v *Vault) Store(ctx context.Context, u Upload) (*storage.StoredFile, error) {
	if err := dataset.CheckSize(int64(len(u.Payload))); err != nil {
		return nil, err
	}

	sealed, err := v.cipher.Encrypt(u.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file: %w", err)
	}
	token, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	file := storage.StoredFile{
		ID:            utils.NewID(),
		Filename:      u.Filename,
		StoragePath:   "csv/" + token + ".enc",
		Schema:        storage.JSON[dataset.Schema]{V: u.Schema},
		RowCount:      u.RowCount,
		EncSalt:       sealed.SaltHex,
		EncIV:         sealed.IVHex,
		EncTag:        sealed.TagHex,
		UpdateMessage: optional(u.UpdateMessage),
		UploadedAt:    v.now(),
	}

	if err := v.blobs.Put(ctx, file.StoragePath, sealed.Ciphertext); err != nil {
		return nil, err
	}
	if err := v.store.CreateFile(ctx, file); err != nil {
		if delErr := v.blobs.Delete(context.WithoutCancel(ctx), file.StoragePath); delErr != nil {
			v.logger.Error("Failed to remove orphaned blob", "path", file.StoragePath, "error", delErr)
		}
		return nil, fmt.Errorf("failed to store file metadata: %w", err)
	}

	current, err := v.Current(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		if err := v.store.SetSetting(ctx, storage.SettingCurrentFile, file.ID); err != nil {
			return nil, err
		}
	}

	v.logger.Info("File stored", "file_id", file.ID, "filename", file.Filename, "rows", file.RowCount, "bytes", len(u.Payload))
	return &file, nil
}

// Retrieve reads and decrypts a stored file. Any integrity failure returns
// crypto.ErrDecrypt.
func (v *Vault) Retrieve(ctx context.Context, file *storage.StoredFile) ([]byte, error) {
	ciphertext, err := v.blobs.Get(ctx, file.StoragePath)
	if err != nil {
		return nil, err
	}
	payload, err := v.cipher.Decrypt(ciphertext, file.EncSalt, file.EncIV, file.EncTag)
	if err != nil {
		v.logger.Error("Stored file failed integrity check", "file_id", file.ID, "error", err)
		return nil, err
	}
	return payload, nil
}

// Table retrieves a stored file and parses it.
func (v *Vault) Table(ctx context.Context, file *storage.StoredFile) (*dataset.Table, error) {
	payload, err := v.Retrieve(ctx, file)
	if err != nil {
		return nil, err
	}
	return dataset.Parse(payload)
}

// Current returns the current file, or nil when none is set.
func (v *Vault) Current(ctx context.Context) (*storage.StoredFile, error) {
	id, err := v.store.GetSetting(ctx, storage.SettingCurrentFile)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	file, err := v.store.GetFile(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (v *Vault) SetCurrent(ctx context.Context, id string) error {
	if _, err := v.Get(ctx, id); err != nil {
		return err
	}
	return v.store.SetSetting(ctx, storage.SettingCurrentFile, id)
}

func (v *Vault) Get(ctx context.Context, id string) (*storage.StoredFile, error) {
	file, err := v.store.GetFile(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	return file, err
}

func (v *Vault) List(ctx context.Context) ([]storage.StoredFile, error) {
	return v.store.ListFiles(ctx)
}

// UpdateMessage sets the note shown to viewers. An empty message clears it.
func (v *Vault) UpdateMessage(ctx context.Context, id, message string) error {
	err := v.store.UpdateFileMessage(ctx, id, optional(message))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrFileNotFound
	}
	return err
}

// Delete removes the ciphertext and then the metadata row.
func (v *Vault) Delete(ctx context.Context, id string) error {
	file, err := v.Get(ctx, id)
	if err != nil {
		return err
	}
	current, err := v.store.GetSetting(ctx, storage.SettingCurrentFile)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if err := v.blobs.Delete(ctx, file.StoragePath); err != nil {
		return err
	}
	if err := v.store.DeleteFile(ctx, id); err != nil {
		return err
	}
	if current == id {
		if err := v.store.DeleteSetting(ctx, storage.SettingCurrentFile); err != nil {
			return err
		}
	}
	v.logger.Info("File deleted", "file_id", id)
	return nil
}
