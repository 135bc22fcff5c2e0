package storage

import (
	"context"
	"time"
)

const deviceColumns = `id, link_id, token_hash, device_fingerprint_hash, approved_request_id, created_at, last_used_at`

func (p *SQLProvider) CreateDevice(ctx context.Context, device LinkDevice) error {
	_, err := p.db.ExecContext(ctx, p.q(`INSERT INTO link_devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		device.ID, device.LinkID, device.TokenHash, device.FingerprintHash,
		device.ApprovedRequestID, utc(device.CreatedAt), device.LastUsedAt,
	)
	return translate(err)
}

func (p *SQLProvider) FindDevice(ctx context.Context, linkID, tokenHash, fingerprintHash string) (*LinkDevice, error) {
	var device LinkDevice
	err := p.db.GetContext(ctx, &device, p.q(`SELECT `+deviceColumns+` FROM link_devices
		WHERE link_id = ? AND token_hash = ? AND device_fingerprint_hash = ?`),
		linkID, tokenHash, fingerprintHash,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (p *SQLProvider) TouchDevice(ctx context.Context, id string, at time.Time) error {
	return p.exec(ctx, "UPDATE link_devices SET last_used_at = ? WHERE id = ?", utc(at), id)
}

// ListDevices lists devices of one link, or of every link when linkID is empty.
func (p *SQLProvider) ListDevices(ctx context.Context, linkID string) ([]LinkDevice, error) {
	devices := []LinkDevice{}
	var err error
	if linkID == "" {
		err = p.db.SelectContext(ctx, &devices, "SELECT "+deviceColumns+" FROM link_devices ORDER BY created_at DESC")
	} else {
		err = p.db.SelectContext(ctx, &devices,
			p.q("SELECT "+deviceColumns+" FROM link_devices WHERE link_id = ? ORDER BY created_at DESC"), linkID)
	}
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (p *SQLProvider) DeleteDevice(ctx context.Context, id string) error {
	return p.exec(ctx, "DELETE FROM link_devices WHERE id = ?", id)
}
