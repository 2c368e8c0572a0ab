package users

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

type memoryRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]*User), nextID: 1}
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]User, error) {
	var out []User
	for _, u := range r.users {
		if filter.OrganizationID != nil && (u.OrganizationID == nil || *u.OrganizationID != *filter.OrganizationID) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memoryRepo) Create(ctx context.Context, u *User) (*User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, shared.ErrConflict
		}
	}
	clone := *u
	clone.ID = r.nextID
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = clone.CreatedAt
	r.nextID++
	r.users[clone.ID] = &clone
	result := clone
	return &result, nil
}

func (r *memoryRepo) Update(ctx context.Context, u *User) error {
	if _, ok := r.users[u.ID]; !ok {
		return shared.ErrNotFound
	}
	clone := *u
	clone.UpdatedAt = time.Now()
	r.users[u.ID] = &clone
	return nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func orgID(id int64) *int64 {
	return &id
}

func TestCreateHashesPasswordAndNormalizesRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), 1, CreateParams{
		Email:          "ops@example.com",
		Name:           "Ops",
		Password:       "supersecret",
		Role:           "org_operator",
		OrganizationID: orgID(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "editor", created.Role)
	assert.True(t, created.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("supersecret")))
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.Create(context.Background(), 1, CreateParams{Email: "dup@example.com", Name: "A", Password: "supersecret", Role: "viewer"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 1, CreateParams{Email: "dup@example.com", Name: "B", Password: "supersecret", Role: "viewer"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateNormalizesLegacyRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	created, err := repo.Create(context.Background(), &User{Email: "a@example.com", Role: "viewer", IsActive: true})
	require.NoError(t, err)

	legacy := "org_admin"
	updated, err := svc.Update(context.Background(), 1, created.ID, UpdateParams{Role: &legacy})
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.Role)
}

func TestSetActiveFlips(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	created, err := repo.Create(context.Background(), &User{Email: "a@example.com", Role: "viewer", IsActive: true})
	require.NoError(t, err)

	updated, err := svc.SetActive(context.Background(), 1, created.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	updated, err = svc.SetActive(context.Background(), 1, created.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
}

func TestDeleteMissingUser(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	err := svc.Delete(context.Background(), 1, 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
