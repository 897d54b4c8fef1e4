package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DB interface for database operations
type DB interface {
	Init() error
	UserStore
	TokenStore
	PropertyStore
}

// Memory DB
type MemDB struct {
	mu         sync.RWMutex
	users      map[string]*User // by id
	emails     map[string]string
	tokens     map[string]*RefreshToken
	properties map[string]*Property
	order      []string
}

func NewMemoryDB() *MemDB {
	return &MemDB{
		users:      map[string]*User{},
		emails:     map[string]string{},
		tokens:     map[string]*RefreshToken{},
		properties: map[string]*Property{},
	}
}

func (m *MemDB) Init() error { return nil }

func (m *MemDB) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[u.Email]; ok {
		return ErrConflict
	}
	cp := *u
	m.users[u.ID] = &cp
	m.emails[u.Email] = u.ID
	return nil
}

func (m *MemDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemDB) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.Token] = &cp
	return nil
}

func (m *MemDB) FindRefreshToken(ctx context.Context, userID, token string) (*RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[token]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemDB) DeleteRefreshToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func cloneProperty(p *Property) *Property {
	cp := *p
	cp.Images = append([]string{}, p.Images...)
	if p.Address != nil {
		a := *p.Address
		cp.Address = &a
	}
	if p.City != nil {
		c := *p.City
		cp.City = &c
	}
	return &cp
}

func (m *MemDB) CreateProperty(ctx context.Context, p *Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[p.ID] = cloneProperty(p)
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemDB) ListPropertiesByOwner(ctx context.Context, ownerID string) ([]*Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Property
	for _, id := range m.order {
		if p, ok := m.properties[id]; ok && p.Owner == ownerID {
			out = append(out, cloneProperty(p))
		}
	}
	return out, nil
}

func (m *MemDB) GetProperty(ctx context.Context, id, ownerID string) (*Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	if !ok || p.Owner != ownerID {
		return nil, ErrNotFound
	}
	return cloneProperty(p), nil
}

func (m *MemDB) UpdateProperty(ctx context.Context, p *Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.properties[p.ID]
	if !ok || cur.Owner != p.Owner {
		return ErrNotFound
	}
	m.properties[p.ID] = cloneProperty(p)
	return nil
}

func (m *MemDB) DeleteProperty(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok || p.Owner != ownerID {
		return ErrNotFound
	}
	delete(m.properties, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// SQLite DB
type SQLiteDB struct {
	db   *sql.DB
	path string
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY under load
	d.SetMaxOpenConns(1)
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, name TEXT, address TEXT, date_of_birth TEXT, email TEXT UNIQUE NOT NULL, password TEXT NOT NULL, created_at INTEGER NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (token TEXT PRIMARY KEY, user_id TEXT NOT NULL, expires_at INTEGER NOT NULL, created_at INTEGER NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_user_id_idx ON refresh_tokens(user_id);`,
		`CREATE TABLE IF NOT EXISTS properties (id TEXT PRIMARY KEY, owner_id TEXT NOT NULL, images TEXT NOT NULL, address TEXT, city TEXT, created_at INTEGER NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS properties_owner_id_idx ON properties(owner_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteDB) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id,name,address,date_of_birth,email,password,created_at) VALUES(?,?,?,?,?,?,?)`,
		u.ID, u.Name, u.Address, u.DateOfBirth, u.Email, u.Password, u.CreatedAt.UnixNano())
	if isSQLiteUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *SQLiteDB) scanUser(row *sql.Row) (*User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Name, &u.Address, &u.DateOfBirth, &u.Email, &u.Password, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT id,name,address,date_of_birth,email,password,created_at FROM users WHERE email = ?`, email))
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT id,name,address,date_of_birth,email,password,created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteDB) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO refresh_tokens(token,user_id,expires_at,created_at) VALUES(?,?,?,?)`,
		t.Token, t.UserID, t.ExpiresAt.UnixNano(), t.CreatedAt.UnixNano())
	return err
}

func (s *SQLiteDB) FindRefreshToken(ctx context.Context, userID, token string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token,user_id,expires_at,created_at FROM refresh_tokens WHERE user_id = ? AND token = ?`, userID, token)
	var t RefreshToken
	var expires, created int64
	if err := row.Scan(&t.Token, &t.UserID, &expires, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.ExpiresAt = time.Unix(0, expires).UTC()
	t.CreatedAt = time.Unix(0, created).UTC()
	return &t, nil
}

func (s *SQLiteDB) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProperty(row rowScanner) (*Property, error) {
	var p Property
	var images string
	var address, city sql.NullString
	var created int64
	if err := row.Scan(&p.ID, &p.Owner, &images, &address, &city, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if address.Valid {
		p.Address = &address.String
	}
	if city.Valid {
		p.City = &city.String
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	return &p, nil
}

func (s *SQLiteDB) CreateProperty(ctx context.Context, p *Property) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO properties(id,owner_id,images,address,city,created_at) VALUES(?,?,?,?,?,?)`,
		p.ID, p.Owner, string(images), p.Address, p.City, p.CreatedAt.UnixNano())
	return err
}

func (s *SQLiteDB) ListPropertiesByOwner(ctx context.Context, ownerID string) ([]*Property, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,owner_id,images,address,city,created_at FROM properties WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Property
	for rows.Next() {
		p, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) GetProperty(ctx context.Context, id, ownerID string) (*Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,owner_id,images,address,city,created_at FROM properties WHERE id = ? AND owner_id = ?`, id, ownerID)
	p, err := scanSQLiteProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *SQLiteDB) UpdateProperty(ctx context.Context, p *Property) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE properties SET images = ?, address = ?, city = ? WHERE id = ? AND owner_id = ?`,
		string(images), p.Address, p.City, p.ID, p.Owner)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteDB) DeleteProperty(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
