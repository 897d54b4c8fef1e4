package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestPropertyRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewPropertyRepository(NewMemoryDB())

	p, err := repo.Create(ctx, "owner-1", []string{"uploads/1-a.png"}, strPtr("1 Main St"), strPtr("Springfield"))
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "owner-1", p.Owner)

	got, err := repo.Get(ctx, p.ID, "owner-1")
	require.NoError(t, err)
	require.Equal(t, p.Images, got.Images)
	require.Equal(t, "Springfield", *got.City)

	// address-only update keeps city and images
	updated, err := repo.Update(ctx, p.ID, "owner-1", PropertyPatch{Address: strPtr("2 Oak Ave")})
	require.NoError(t, err)
	require.Equal(t, "2 Oak Ave", *updated.Address)
	require.Equal(t, "Springfield", *updated.City)
	require.Equal(t, []string{"uploads/1-a.png"}, updated.Images)

	updated, err = repo.Update(ctx, p.ID, "owner-1", PropertyPatch{Images: []string{"uploads/2-b.jpg"}})
	require.NoError(t, err)
	require.Equal(t, []string{"uploads/2-b.jpg"}, updated.Images)
	require.Equal(t, "2 Oak Ave", *updated.Address)

	require.NoError(t, repo.Delete(ctx, p.ID, "owner-1"))
	_, err = repo.Get(ctx, p.ID, "owner-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPropertyRepository_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := NewPropertyRepository(NewMemoryDB())

	p, err := repo.Create(ctx, "owner-1", nil, strPtr("1 Main St"), nil)
	require.NoError(t, err)
	require.Equal(t, []string{}, p.Images)
	require.Nil(t, p.City)

	_, err = repo.Get(ctx, p.ID, "owner-2")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Update(ctx, p.ID, "owner-2", PropertyPatch{City: strPtr("Elsewhere")})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, p.ID, "owner-2"), ErrNotFound)

	// untouched by the failed attempts
	got, err := repo.Get(ctx, p.ID, "owner-1")
	require.NoError(t, err)
	require.Nil(t, got.City)
}

func TestPropertyRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewPropertyRepository(NewMemoryDB())

	empty, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	a, err := repo.Create(ctx, "owner-1", nil, strPtr("a"), nil)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "owner-2", nil, strPtr("b"), nil)
	require.NoError(t, err)
	c, err := repo.Create(ctx, "owner-1", nil, strPtr("c"), nil)
	require.NoError(t, err)

	list, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, a.ID, list[0].ID)
	require.Equal(t, c.ID, list[1].ID)
}
