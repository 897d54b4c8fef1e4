package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PropertyStore persists properties. Every lookup or mutation by id is scoped
// to an owner and returns ErrNotFound when the id is absent or owned by
// someone else.
type PropertyStore interface {
	CreateProperty(ctx context.Context, p *Property) error
	ListPropertiesByOwner(ctx context.Context, ownerID string) ([]*Property, error)
	GetProperty(ctx context.Context, id, ownerID string) (*Property, error)
	UpdateProperty(ctx context.Context, p *Property) error
	DeleteProperty(ctx context.Context, id, ownerID string) error
}

type PropertyRepository struct {
	store PropertyStore
	now   func() time.Time
}

func NewPropertyRepository(store PropertyStore) *PropertyRepository {
	return &PropertyRepository{store: store, now: time.Now}
}

func (r *PropertyRepository) Create(ctx context.Context, ownerID string, images []string, address, city *string) (*Property, error) {
	if images == nil {
		images = []string{}
	}
	p := &Property{
		ID:        uuid.NewString(),
		Owner:     ownerID,
		Images:    images,
		Address:   address,
		City:      city,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.CreateProperty(ctx, p); err != nil {
		return nil, fmt.Errorf("create property: %w", err)
	}
	return p, nil
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*Property, error) {
	props, err := r.store.ListPropertiesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	if props == nil {
		props = []*Property{}
	}
	return props, nil
}

func (r *PropertyRepository) Get(ctx context.Context, id, requesterID string) (*Property, error) {
	p, err := r.store.GetProperty(ctx, id, requesterID)
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	return p, nil
}

// Update applies patch to the requester's property.
func (r *PropertyRepository) Update(ctx context.Context, id, requesterID string, patch PropertyPatch) (*Property, error) {
	p, err := r.Get(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if patch.Images != nil {
		p.Images = patch.Images
	}
	if patch.Address != nil {
		p.Address = patch.Address
	}
	if patch.City != nil {
		p.City = patch.City
	}
	if err := r.store.UpdateProperty(ctx, p); err != nil {
		return nil, fmt.Errorf("update property %s: %w", id, err)
	}
	return p, nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id, requesterID string) error {
	if err := r.store.DeleteProperty(ctx, id, requesterID); err != nil {
		return fmt.Errorf("delete property %s: %w", id, err)
	}
	return nil
}
