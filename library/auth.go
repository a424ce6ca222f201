package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const adminPasswordKey = "admin_password_hash"

// ErrAdminPasswordUnset indicates no admin credential has been stored yet.
var ErrAdminPasswordUnset = errors.New("no admin password set")

const upsertSettingSQL = `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// SetAdminPassword stores a bcrypt hash of the admin password.
func (d *Database) SetAdminPassword(ctx context.Context, password string) error {
	if len(password) < 8 {
		return errors.New("admin password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, upsertSettingSQL, adminPasswordKey, string(hash)); err != nil {
		return fmt.Errorf("store admin password: %w", err)
	}
	return nil
}

// VerifyAdminPassword checks a candidate password against the stored hash.
func (d *Database) VerifyAdminPassword(ctx context.Context, password string) error {
	var hash string
	err := d.db.GetContext(ctx, &hash, `SELECT value FROM settings WHERE key = ?`, adminPasswordKey)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAdminPasswordUnset
	}
	if err != nil {
		return fmt.Errorf("load admin password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errors.New("incorrect password")
	}
	return nil
}
