package storage

import (
	"context"
	"time"

	"csv-share-access/internal/dataset"
)

const linkColumns = `id, file_id, name, criteria, password_salt, password_hash, password_used_at, active, display_options, created_at`

func (p *SQLProvider) CreateLink(ctx context.Context, link AccessLink) error {
	_, err := p.db.ExecContext(ctx, p.q(`INSERT INTO access_links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		link.ID, link.FileID, link.Name, link.Criteria, link.PasswordSalt, link.PasswordHash,
		link.PasswordUsedAt, link.Active, link.DisplayOptions, utc(link.CreatedAt),
	)
	return translate(err)
}

func (p *SQLProvider) GetLink(ctx context.Context, id string) (*AccessLink, error) {
	var link AccessLink
	if err := p.db.GetContext(ctx, &link, p.q("SELECT "+linkColumns+" FROM access_links WHERE id = ?"), id); err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (p *SQLProvider) ListLinks(ctx context.Context) ([]AccessLink, error) {
	links := []AccessLink{}
	if err := p.db.SelectContext(ctx, &links, "SELECT "+linkColumns+" FROM access_links ORDER BY created_at DESC"); err != nil {
		return nil, err
	}
	return links, nil
}

func (p *SQLProvider) UpdateLinkName(ctx context.Context, id string, name string) error {
	return p.exec(ctx, "UPDATE access_links SET name = ? WHERE id = ?", name, id)
}

func (p *SQLProvider) UpdateLinkActive(ctx context.Context, id string, active bool) error {
	return p.exec(ctx, "UPDATE access_links SET active = ? WHERE id = ?", active, id)
}

func (p *SQLProvider) UpdateLinkOptions(ctx context.Context, id string, opts dataset.DisplayOptions) error {
	return p.exec(ctx, "UPDATE access_links SET display_options = ? WHERE id = ?", JSON[dataset.DisplayOptions]{V: opts}, id)
}

func (p *SQLProvider) DeleteLink(ctx context.Context, id string) error {
	return p.exec(ctx, "DELETE FROM access_links WHERE id = ?", id)
}

func (p *SQLProvider) MarkPasswordUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	return p.conditional(ctx,
		"UPDATE access_links SET password_used_at = ? WHERE id = ? AND password_used_at IS NULL RETURNING id",
		utc(at), id,
	)
}
