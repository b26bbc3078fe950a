package repository

import (
	"context"
	"database/sql"
)

// SettingRepo reads and writes the settings key/value table.
type SettingRepo struct{ DB *sql.DB }

func NewSettingRepo(db *sql.DB) *SettingRepo { return &SettingRepo{DB: db} }

// Get returns the stored value for key.  A missing key yields "" and no
// error, the same as an explicitly cleared one.
func (r *SettingRepo) Get(ctx context.Context, key string) (string, error) {
	var v sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT setting_value FROM settings WHERE setting_key=? LIMIT 1",
		key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v.String, nil
}

// Set upserts key.
func (r *SettingRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO settings (setting_key, setting_value) VALUES (?,?) ON DUPLICATE KEY UPDATE setting_value=VALUES(setting_value)",
		key, value)
	return err
}
