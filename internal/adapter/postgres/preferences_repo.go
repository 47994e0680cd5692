package postgres

import "context"

// GetPreferences returns the stored preferences of a user.
func (d *DB) GetPreferences(ctx context.Context, userID int64) (map[string]bool, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT key, value FROM preferences WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			k string
			v bool
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetPreference upserts a single preference.
func (d *DB) SetPreference(ctx context.Context, userID int64, key string, value bool) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO preferences (user_id, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`,
		userID, key, value,
	)
	return err
}

// DeletePreferences removes every stored preference of a user.
func (d *DB) DeletePreferences(ctx context.Context, userID int64) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM preferences WHERE user_id = $1", userID)
	return err
}
