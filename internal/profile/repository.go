package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/observon/indi-core/internal/infrastructure/database"
	"github.com/observon/indi-core/internal/infrastructure/logging"
)

// Repository provides persistence for profiles and custom drivers on the
// SQLite profile store.
//
// Thread Safety: safe for concurrent use. The underlying pool is a
// single connection, so writes serialise at the database layer.
type Repository struct {
	db     *database.DB
	logger *logging.Logger
}

// NewRepository creates a repository backed by the given database.
func NewRepository(db *database.DB, logger *logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With("component", "profile-repository"),
	}
}

// List returns all profiles sorted by name, with drivers and remotes
// populated.
func (r *Repository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, port, autostart, autoconnect, created_at, updated_at
		FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Port, &p.Autostart, &p.Autoconnect,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profiles: %w", err)
	}

	for i := range profiles {
		if err := r.loadMembers(ctx, &profiles[i]); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// Get returns the profile with the given name.
// Returns ErrProfileNotFound if no such profile exists.
func (r *Repository) Get(ctx context.Context, name string) (*Profile, error) {
	var p Profile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, port, autostart, autoconnect, created_at, updated_at
		FROM profiles WHERE name = ?`, name).
		Scan(&p.ID, &p.Name, &p.Port, &p.Autostart, &p.Autoconnect,
			&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile %q: %w", name, err)
	}

	if err := r.loadMembers(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Autostart returns the profile flagged for autostart, or nil when none
// is flagged.
func (r *Repository) Autostart(ctx context.Context) (*Profile, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		"SELECT name FROM profiles WHERE autostart = 1 LIMIT 1").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding autostart profile: %w", err)
	}
	return r.Get(ctx, name)
}

// Create inserts a new profile with its drivers and remotes.
// Returns ErrProfileExists on a name collision and ErrInvalidProfile on
// validation failure.
func (r *Repository) Create(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (name, port, autostart, autoconnect)
		VALUES (?, ?, ?, ?)`,
		p.Name, p.Port, p.Autostart, p.Autoconnect)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrProfileExists, p.Name)
		}
		return fmt.Errorf("inserting profile: %w", err)
	}
	p.ID, _ = res.LastInsertId()

	if err := r.saveMembers(ctx, tx, p); err != nil {
		return err
	}
	if p.Autostart {
		if err := clearOtherAutostarts(ctx, tx, p.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing profile create: %w", err)
	}

	r.logger.Info("profile created", "name", p.Name, "drivers", len(p.Drivers))
	return nil
}

// Update replaces the profile identified by name with the given data.
// Renaming the protected default profile returns ErrProfileProtected.
func (r *Repository) Update(ctx context.Context, name string, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	existing, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	if existing.Protected() && p.Name != existing.Name {
		return fmt.Errorf("%w: cannot rename %q", ErrProfileProtected, name)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET name = ?, port = ?, autostart = ?, autoconnect = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Name, p.Port, p.Autostart, p.Autoconnect, existing.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrProfileExists, p.Name)
		}
		return fmt.Errorf("updating profile: %w", err)
	}
	p.ID = existing.ID

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM profile_drivers WHERE profile_id = ?", existing.ID); err != nil {
		return fmt.Errorf("clearing profile drivers: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM profile_remotes WHERE profile_id = ?", existing.ID); err != nil {
		return fmt.Errorf("clearing profile remotes: %w", err)
	}
	if err := r.saveMembers(ctx, tx, p); err != nil {
		return err
	}
	if p.Autostart {
		if err := clearOtherAutostarts(ctx, tx, existing.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing profile update: %w", err)
	}

	r.logger.Info("profile updated", "name", p.Name)
	return nil
}

// Delete removes the profile with the given name.
// The protected default profile returns ErrProfileProtected.
func (r *Repository) Delete(ctx context.Context, name string) error {
	if name == DefaultProfileName {
		return fmt.Errorf("%w: cannot delete %q", ErrProfileProtected, name)
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}

	r.logger.Info("profile deleted", "name", name)
	return nil
}

// loadMembers populates Drivers and Remotes for a profile. Rows come
// back in insertion order (by id) so the user's driver ordering
// survives a round trip.
func (r *Repository) loadMembers(ctx context.Context, p *Profile) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT label FROM profile_drivers WHERE profile_id = ? ORDER BY id", p.ID)
	if err != nil {
		return fmt.Errorf("loading profile drivers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	p.Drivers = nil
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return fmt.Errorf("scanning driver label: %w", err)
		}
		p.Drivers = append(p.Drivers, label)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	remotes, err := r.db.QueryContext(ctx,
		"SELECT spec FROM profile_remotes WHERE profile_id = ? ORDER BY id", p.ID)
	if err != nil {
		return fmt.Errorf("loading profile remotes: %w", err)
	}
	defer remotes.Close() //nolint:errcheck

	p.Remotes = nil
	for remotes.Next() {
		var spec string
		if err := remotes.Scan(&spec); err != nil {
			return fmt.Errorf("scanning remote spec: %w", err)
		}
		p.Remotes = append(p.Remotes, spec)
	}
	return remotes.Err()
}

// saveMembers inserts driver and remote rows for a profile within tx.
func (r *Repository) saveMembers(ctx context.Context, tx *sql.Tx, p *Profile) error {
	for _, label := range p.Drivers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO profile_drivers (profile_id, label) VALUES (?, ?)",
			p.ID, label); err != nil {
			return fmt.Errorf("inserting driver %q: %w", label, err)
		}
	}
	for _, spec := range p.Remotes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO profile_remotes (profile_id, spec) VALUES (?, ?)",
			p.ID, spec); err != nil {
			return fmt.Errorf("inserting remote %q: %w", spec, err)
		}
	}
	return nil
}

// clearOtherAutostarts enforces the single-autostart invariant.
func clearOtherAutostarts(ctx context.Context, tx *sql.Tx, keepID int64) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE profiles SET autostart = 0 WHERE id != ?", keepID); err != nil {
		return fmt.Errorf("clearing autostart flags: %w", err)
	}
	return nil
}

// ListCustomDrivers returns all user-registered drivers sorted by label.
func (r *Repository) ListCustomDrivers(ctx context.Context) ([]CustomDriver, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, name, binary, family, version
		FROM custom_drivers ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("listing custom drivers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var drivers []CustomDriver
	for rows.Next() {
		var d CustomDriver
		if err := rows.Scan(&d.ID, &d.Label, &d.Name, &d.Binary, &d.Family, &d.Version); err != nil {
			return nil, fmt.Errorf("scanning custom driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// AddCustomDriver inserts a custom driver.
// Returns ErrDriverExists on a label collision.
func (r *Repository) AddCustomDriver(ctx context.Context, d *CustomDriver) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Name == "" {
		d.Name = d.Label
	}
	if d.Family == "" {
		d.Family = "Custom"
	}
	if d.Version == "" {
		d.Version = "1.0"
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO custom_drivers (label, name, binary, family, version)
		VALUES (?, ?, ?, ?, ?)`,
		d.Label, d.Name, d.Binary, d.Family, d.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDriverExists, d.Label)
		}
		return fmt.Errorf("inserting custom driver: %w", err)
	}
	d.ID, _ = res.LastInsertId()

	r.logger.Info("custom driver added", "label", d.Label, "binary", d.Binary)
	return nil
}

// DeleteCustomDriver removes a custom driver by label.
func (r *Repository) DeleteCustomDriver(ctx context.Context, label string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM custom_drivers WHERE label = ?", label)
	if err != nil {
		return fmt.Errorf("deleting custom driver: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrDriverNotFound, label)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
