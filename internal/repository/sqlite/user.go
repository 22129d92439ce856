package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/model"
	"github.com/sakif/foodshare/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// UpsertOnboarding records the user's role and replaces their location.
//
// ON CONFLICT ... DO UPDATE:
// A returning user keeps their original name, email and created_at; only the
// role (and updated_at) change. The old location row is deleted rather than
// updated so a location is never mutated after creation.
//
// Everything runs in one transaction: a failure leaves neither a role change
// nor a half-replaced location behind.
func (db *DB) UpsertOnboarding(ctx context.Context, user *model.User, loc *model.Location) error {
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning onboarding tx: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, role, name, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		user.ID, user.Role, user.Name, user.Email, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s: %w", user.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE user_id = ?`, user.ID); err != nil {
		return fmt.Errorf("sqlite: removing location of user %s: %w", user.ID, err)
	}

	loc.ID = xid.New().String()
	loc.UserID = user.ID
	loc.CreatedAt = now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO locations (id, user_id, latitude, longitude, address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.UserID, loc.Latitude, loc.Longitude, loc.Address, loc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting location for user %s: %w", user.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing onboarding of user %s: %w", user.ID, err)
	}

	// Read back the canonical row: on update, name/email/created_at come from
	// the existing record, not from the caller.
	stored, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// GetUserByID retrieves a user and their location (nil if they have none).
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT u.id, u.role, u.name, u.email, u.created_at, u.updated_at,
		        l.id, l.latitude, l.longitude, l.address, l.created_at
		 FROM users u
		 LEFT JOIN locations l ON l.user_id = u.id
		 WHERE u.id = ?`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u       model.User
		locID   sql.NullString
		lat     sql.NullFloat64
		lon     sql.NullFloat64
		address sql.NullString
		locAt   sql.NullTime
	)
	err := s.Scan(
		&u.ID, &u.Role, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt,
		&locID, &lat, &lon, &address, &locAt,
	)
	if err != nil {
		return nil, err
	}
	if locID.Valid {
		u.Location = &model.Location{
			ID:        locID.String,
			UserID:    u.ID,
			Latitude:  lat.Float64,
			Longitude: lon.Float64,
			Address:   address.String,
			CreatedAt: locAt.Time,
		}
	}
	return &u, nil
}
