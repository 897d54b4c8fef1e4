package main

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return &PostgresDB{db: db}, mock
}

var propertyColumns = []string{"id", "owner_id", "images", "address", "city", "created_at"}

func TestPostgresDB_CreateUserConflict(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: pgUniqueViolation, Message: "duplicate key value"})

	err := pg.CreateUser(context.Background(), &User{ID: "u1", Email: "a@example.com", Password: "h", CreatedAt: time.Now()})
	require.ErrorIs(t, err, ErrConflict)
}

func TestPostgresDB_GetUserNotFound(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "date_of_birth", "email", "password", "created_at"}))

	_, err := pg.GetUserByEmail(context.Background(), "a@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDB_FindRefreshTokenScopedToUser(t *testing.T) {
	pg, mock := newMockPostgres(t)
	exp := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM refresh_tokens WHERE user_id = $1 AND token = $2`)).
		WithArgs("u1", "rt-1").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "expires_at", "created_at"}).
			AddRow("rt-1", "u1", exp, exp.Add(-7*24*time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM refresh_tokens WHERE user_id = $1 AND token = $2`)).
		WithArgs("u2", "rt-1").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "expires_at", "created_at"}))

	rt, err := pg.FindRefreshToken(context.Background(), "u1", "rt-1")
	require.NoError(t, err)
	require.Equal(t, exp, rt.ExpiresAt)

	_, err = pg.FindRefreshToken(context.Background(), "u2", "rt-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDB_GetProperty(t *testing.T) {
	pg, mock := newMockPostgres(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM properties WHERE id = $1 AND owner_id = $2`)).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows(propertyColumns).
			AddRow("p1", "u1", "{uploads/1-a.png,uploads/2-b.jpg}", "1 Main St", nil, created))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM properties WHERE id = $1 AND owner_id = $2`)).
		WithArgs("p1", "u2").
		WillReturnRows(sqlmock.NewRows(propertyColumns))

	p, err := pg.GetProperty(context.Background(), "p1", "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"uploads/1-a.png", "uploads/2-b.jpg"}, p.Images)
	require.Equal(t, "1 Main St", *p.Address)
	require.Nil(t, p.City)
	require.Equal(t, created, p.CreatedAt)

	_, err = pg.GetProperty(context.Background(), "p1", "u2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDB_ListPropertiesEmptyImages(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM properties WHERE owner_id = $1 ORDER BY created_at`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(propertyColumns).
			AddRow("p1", "u1", "{}", nil, "Springfield", time.Now()))

	list, err := pg.ListPropertiesByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{}, list[0].Images)
	require.Equal(t, "Springfield", *list[0].City)
}

func TestPostgresDB_UpdateAndDeleteScoped(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE properties SET images = $1, address = $2, city = $3 WHERE id = $4 AND owner_id = $5`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM properties WHERE id = $1 AND owner_id = $2`)).
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM properties WHERE id = $1 AND owner_id = $2`)).
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	err := pg.UpdateProperty(ctx, &Property{ID: "p1", Owner: "u2", Images: []string{}})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, pg.DeleteProperty(ctx, "p1", "u1"))
	require.ErrorIs(t, pg.DeleteProperty(ctx, "p1", "u1"), ErrNotFound)
}
