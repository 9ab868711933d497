package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"voterfield/internal/domain"
)

const userColumns = `id, org_id, name, email, phone, role, password_hash, location_lat, location_lng, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u        domain.User
		lat, lng *float64
	)
	if err := row.Scan(&u.ID, &u.OrgID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.PasswordHash, &lat, &lng, &u.CreatedAt); err != nil {
		return u, err
	}
	if lat != nil && lng != nil {
		u.Location = &domain.GeoPoint{Lat: *lat, Lng: *lng}
	}
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()
	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// querier is satisfied by the pool and by transactions.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertUser(ctx context.Context, q querier, u domain.User) (domain.User, error) {
	var lat, lng *float64
	if u.Location != nil {
		lat, lng = &u.Location.Lat, &u.Location.Lng
	}
	return scanUser(q.QueryRow(ctx, `
        INSERT INTO users (id, org_id, name, email, phone, role, password_hash, location_lat, location_lng)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+userColumns,
		u.ID, u.OrgID, u.Name, u.Email, u.Phone, u.Role, u.PasswordHash, lat, lng))
}

func (db *DB) GetUser(ctx context.Context, orgID, userID string) (domain.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE org_id = $1 AND id = $2`, orgID, userID))
	return u, mapErr(err, "user")
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	return u, mapErr(err, "user")
}

func (db *DB) FirstUserWithRole(ctx context.Context, orgID string, role domain.Role) (domain.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx, `
        SELECT `+userColumns+` FROM users
        WHERE org_id = $1 AND role = $2
        ORDER BY created_at, id
        LIMIT 1`, orgID, role))
	return u, mapErr(err, "user")
}

func (db *DB) ListUsers(ctx context.Context, orgID string, role domain.Role) ([]domain.User, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+userColumns+` FROM users
        WHERE org_id = $1 AND ($2 = '' OR role = $2)
        ORDER BY name, id`, orgID, string(role))
	if err != nil {
		return nil, mapErr(err, "users")
	}
	users, err := collectUsers(rows)
	return users, mapErr(err, "users")
}

func (db *DB) CountUsers(ctx context.Context, orgID string) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE org_id = $1`, orgID).Scan(&n)
	return n, mapErr(err, "users")
}

func (db *DB) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	created, err := insertUser(ctx, db.Pool, u)
	return created, mapErr(err, "user")
}

func (db *DB) UpdateUserLocation(ctx context.Context, orgID, userID string, loc domain.GeoPoint) error {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE users SET location_lat = $3, location_lng = $4
        WHERE org_id = $1 AND id = $2`, orgID, userID, loc.Lat, loc.Lng)
	if err != nil {
		return mapErr(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("user")
	}
	return nil
}
