package storage

import (
	"context"
	"time"
)

const fileColumns = `id, filename, storage_path, schema, row_count, enc_salt, enc_iv, enc_tag, update_message, uploaded_at`

func (p *SQLProvider) CreateFile(ctx context.Context, file StoredFile) error {
	_, err := p.db.ExecContext(ctx, p.q(`INSERT INTO csv_files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		file.ID, file.Filename, file.StoragePath, file.Schema, file.RowCount,
		file.EncSalt, file.EncIV, file.EncTag, file.UpdateMessage, utc(file.UploadedAt),
	)
	return translate(err)
}

func (p *SQLProvider) GetFile(ctx context.Context, id string) (*StoredFile, error) {
	var file StoredFile
	if err := p.db.GetContext(ctx, &file, p.q("SELECT "+fileColumns+" FROM csv_files WHERE id = ?"), id); err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

func (p *SQLProvider) ListFiles(ctx context.Context) ([]StoredFile, error) {
	files := []StoredFile{}
	if err := p.db.SelectContext(ctx, &files, "SELECT "+fileColumns+" FROM csv_files ORDER BY uploaded_at DESC"); err != nil {
		return nil, err
	}
	return files, nil
}

func (p *SQLProvider) UpdateFileMessage(ctx context.Context, id string, message *string) error {
	return p.exec(ctx, "UPDATE csv_files SET update_message = ? WHERE id = ?", message, id)
}

func (p *SQLProvider) DeleteFile(ctx context.Context, id string) error {
	return p.exec(ctx, "DELETE FROM csv_files WHERE id = ?", id)
}

func (p *SQLProvider) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := p.db.GetContext(ctx, &value, p.q("SELECT value FROM app_settings WHERE key = ?"), key); err != nil {
		return "", translate(err)
	}
	return value, nil
}

func (p *SQLProvider) SetSetting(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx, p.q(`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, value, time.Now().UTC(),
	)
	return err
}

func (p *SQLProvider) DeleteSetting(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, p.q("DELETE FROM app_settings WHERE key = ?"), key)
	return err
}
