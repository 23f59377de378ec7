package identity

import (
	"context"
	"errors"
	"testing"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	byID       map[uint]*models.User
	byExternal map[string]*models.User
	byEmail    map[string]*models.User
	nextID     uint
	created    []*models.User
	failWith   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:       map[uint]*models.User{},
		byExternal: map[string]*models.User{},
		byEmail:    map[string]*models.User{},
		nextID:     1,
	}
}

func (f *fakeUserRepo) add(u *models.User) *models.User {
	if u.ID == 0 {
		u.ID = f.nextID
		f.nextID++
	}
	f.byID[u.ID] = u
	if u.ExternalID != nil {
		f.byExternal[*u.ExternalID] = u
	}
	if u.Email != nil {
		f.byEmail[*u.Email] = u
	}
	return u
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if u, ok := f.byExternal[externalID]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.add(user)
	f.created = append(f.created, user)
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.add(user)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: false})
}

func strPtr(s string) *string { return &s }

func TestResolvePrefersKnownID(t *testing.T) {
	repo := newFakeUserRepo()
	byID := repo.add(&models.User{DisplayName: "ById", ExternalID: strPtr("ext-1")})
	repo.add(&models.User{DisplayName: "ByExt", ExternalID: strPtr("ext-2")})

	r := NewResolver(repo, testLogger())

	got, err := r.Resolve(context.Background(), models.UserClaims{
		ID:         &byID.ID,
		ExternalID: "ext-2",
	})
	require.NoError(t, err)
	assert.Equal(t, byID.ID, got.ID)
	assert.Equal(t, "ById", got.DisplayName)
	assert.Empty(t, repo.created)
}

func TestResolveFallsThroughUnknownID(t *testing.T) {
	repo := newFakeUserRepo()
	byExt := repo.add(&models.User{DisplayName: "ByExt", ExternalID: strPtr("ext-2")})

	r := NewResolver(repo, testLogger())

	missing := uint(999)
	got, err := r.Resolve(context.Background(), models.UserClaims{
		ID:         &missing,
		ExternalID: "ext-2",
	})
	require.NoError(t, err)
	assert.Equal(t, byExt.ID, got.ID)
}

func TestResolveByEmail(t *testing.T) {
	repo := newFakeUserRepo()
	byEmail := repo.add(&models.User{DisplayName: "ByEmail", Email: strPtr("a@b.c")})

	r := NewResolver(repo, testLogger())

	got, err := r.Resolve(context.Background(), models.UserClaims{Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, byEmail.ID, got.ID)
	assert.Empty(t, repo.created)
}

func TestResolveCreatesWhenNothingMatches(t *testing.T) {
	repo := newFakeUserRepo()
	r := NewResolver(repo, testLogger())

	got, err := r.Resolve(context.Background(), models.UserClaims{
		ExternalID:  "anon-abc123",
		DisplayName: "Anonymous-abc123",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.NotZero(t, got.ID)
	assert.Equal(t, "Anonymous-abc123", got.DisplayName)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "anon-abc123", *got.ExternalID)
}

func TestResolveRepeatJoinSameUser(t *testing.T) {
	repo := newFakeUserRepo()
	r := NewResolver(repo, testLogger())

	claims := models.UserClaims{ExternalID: "anon-xyz", DisplayName: "Anonymous-xyz"}

	first, err := r.Resolve(context.Background(), claims)
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), claims)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.created, 1)
}

func TestResolveGeneratesExternalIDWithoutClaims(t *testing.T) {
	repo := newFakeUserRepo()
	r := NewResolver(repo, testLogger())

	got, err := r.Resolve(context.Background(), models.UserClaims{})
	require.NoError(t, err)
	require.NotNil(t, got.ExternalID)
	assert.NotEmpty(t, *got.ExternalID)
	assert.Contains(t, got.DisplayName, "User-")
}

func TestResolveDisplayNameFromEmail(t *testing.T) {
	repo := newFakeUserRepo()
	r := NewResolver(repo, testLogger())

	got, err := r.Resolve(context.Background(), models.UserClaims{Email: "pat@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "pat", got.DisplayName)
}

func TestResolveStoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.failWith = errors.New("connection refused")
	r := NewResolver(repo, testLogger())

	_, err := r.Resolve(context.Background(), models.UserClaims{ExternalID: "ext-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
