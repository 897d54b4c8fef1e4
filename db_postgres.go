package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	if err := p.db.Ping(); err != nil {
		return err
	}
	return nil
}

func (p *PostgresDB) CreateUser(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO users(id,name,address,date_of_birth,email,password,created_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Name, u.Address, u.DateOfBirth, u.Email, u.Password, u.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return ErrConflict
	}
	return err
}

func (p *PostgresDB) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Address, &u.DateOfBirth, &u.Email, &u.Password, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `SELECT id,name,address,date_of_birth,email,password,created_at FROM users WHERE email = $1`, email))
}

func (p *PostgresDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `SELECT id,name,address,date_of_birth,email,password,created_at FROM users WHERE id = $1`, id))
}

func (p *PostgresDB) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO refresh_tokens(token,user_id,expires_at,created_at) VALUES($1,$2,$3,$4)`,
		t.Token, t.UserID, t.ExpiresAt, t.CreatedAt)
	return err
}

func (p *PostgresDB) FindRefreshToken(ctx context.Context, userID, token string) (*RefreshToken, error) {
	row := p.db.QueryRowContext(ctx, `SELECT token,user_id,expires_at,created_at FROM refresh_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	var t RefreshToken
	if err := row.Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresDB) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

func scanPostgresProperty(row rowScanner) (*Property, error) {
	var prop Property
	var address, city sql.NullString
	if err := row.Scan(&prop.ID, &prop.Owner, pq.Array(&prop.Images), &address, &city, &prop.CreatedAt); err != nil {
		return nil, err
	}
	if prop.Images == nil {
		prop.Images = []string{}
	}
	if address.Valid {
		prop.Address = &address.String
	}
	if city.Valid {
		prop.City = &city.String
	}
	return &prop, nil
}

func (p *PostgresDB) CreateProperty(ctx context.Context, prop *Property) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO properties(id,owner_id,images,address,city,created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		prop.ID, prop.Owner, pq.Array(prop.Images), prop.Address, prop.City, prop.CreatedAt)
	return err
}

func (p *PostgresDB) ListPropertiesByOwner(ctx context.Context, ownerID string) ([]*Property, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id,owner_id,images,address,city,created_at FROM properties WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Property
	for rows.Next() {
		prop, err := scanPostgresProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, prop)
	}
	return out, rows.Err()
}

func (p *PostgresDB) GetProperty(ctx context.Context, id, ownerID string) (*Property, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id,owner_id,images,address,city,created_at FROM properties WHERE id = $1 AND owner_id = $2`, id, ownerID)
	prop, err := scanPostgresProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return prop, err
}

func (p *PostgresDB) UpdateProperty(ctx context.Context, prop *Property) error {
	res, err := p.db.ExecContext(ctx, `UPDATE properties SET images = $1, address = $2, city = $3 WHERE id = $4 AND owner_id = $5`,
		pq.Array(prop.Images), prop.Address, prop.City, prop.ID, prop.Owner)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) DeleteProperty(ctx context.Context, id, ownerID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM properties WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
