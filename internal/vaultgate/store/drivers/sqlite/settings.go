package sqlite

import (
	"context"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
)

type settingsRepo struct {
	q querier
}

func (r *settingsRepo) GetSetting(ctx context.Context, key string) (domain.Setting, error) {
	var (
		s       domain.Setting
		updated int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = ?`, key,
	).Scan(&s.Key, &s.Value, &updated)
	if err != nil {
		return domain.Setting{}, mapNotFound(err)
	}
	s.UpdatedAt = fromMillis(updated)
	return s, nil
}

func (r *settingsRepo) PutSetting(ctx context.Context, s domain.Setting) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.Key, s.Value, toMillis(s.UpdatedAt))
	return err
}

func (r *settingsRepo) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Setting
	for rows.Next() {
		var (
			s       domain.Setting
			updated int64
		)
		if err := rows.Scan(&s.Key, &s.Value, &updated); err != nil {
			return nil, err
		}
		s.UpdatedAt = fromMillis(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}
