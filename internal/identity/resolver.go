// Package identity resolves a connection's identity claims to a stable user
// record, creating one when nothing matches. Resolution never mutates an
// existing user's stored fields; only the out-of-scope auth flows do that.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/pkg/cache"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

// ErrStoreUnavailable indicates the identity store could not be reached
// during resolution. The caller must not proceed to join.
var ErrStoreUnavailable = errors.New("identity store unavailable")

// Resolver maps identity claims to users. Repeat joins with the same
// external id (page reloads, second tabs) hit a short-lived read cache;
// caching is safe because the relay never mutates user rows.
type Resolver struct {
	users repository.UserRepository
	cache *cache.Cache
	log   *logger.Logger
}

// NewResolver creates a resolver backed by the given user store
func NewResolver(users repository.UserRepository, log *logger.Logger) *Resolver {
	return &Resolver{
		users: users,
		cache: cache.New(5*time.Minute, 10*time.Minute, 10000),
		log:   log,
	}
}

// Resolve returns the stable user for the supplied claims. Resolution order
// is strict and first-match-wins: known id, then external id, then email,
// then create.
func (r *Resolver) Resolve(ctx context.Context, claims models.UserClaims) (*models.User, error) {
	// 1. Known user id, used as-is
	if claims.ID != nil {
		user, err := r.users.FindByID(ctx, *claims.ID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(err)
		}
	}

	// 2. External id
	if claims.ExternalID != "" {
		if cached, ok := r.cache.Get(cacheKey(claims.ExternalID)); ok {
			return cached.(*models.User), nil
		}

		user, err := r.users.FindByExternalID(ctx, claims.ExternalID)
		if err == nil {
			r.cache.Set(cacheKey(claims.ExternalID), user)
			return user, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(err)
		}
	}

	// 3. Email
	if claims.Email != "" {
		user, err := r.users.FindByEmail(ctx, claims.Email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(err)
		}
	}

	// 4. Create a new user (anonymous or newly registered)
	user := newUserFromClaims(claims)
	if err := r.users.Create(ctx, user); err != nil {
		return nil, storeErr(err)
	}

	if user.ExternalID != nil {
		r.cache.Set(cacheKey(*user.ExternalID), user)
	}

	r.log.Info("created user",
		"user_id", user.ID,
		"display_name", user.DisplayName,
	)

	return user, nil
}

func newUserFromClaims(claims models.UserClaims) *models.User {
	externalID := claims.ExternalID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	user := &models.User{
		ExternalID:  &externalID,
		DisplayName: deriveDisplayName(claims, externalID),
	}

	if claims.Avatar != "" {
		user.AvatarURL = &claims.Avatar
	}
	if claims.Email != "" {
		user.Email = &claims.Email
	}
	if claims.Username != "" {
		user.Username = &claims.Username
	}
	if claims.FullName != "" {
		user.FullName = &claims.FullName
	}
	if claims.Phone != "" {
		user.Phone = &claims.Phone
	}

	return user
}

// deriveDisplayName picks a display name for a new user: the supplied
// display name, then the claim's plain name, then the email local part,
// then a synthetic name from the external id prefix.
func deriveDisplayName(claims models.UserClaims, externalID string) string {
	if claims.DisplayName != "" {
		return claims.DisplayName
	}
	if claims.Name != "" {
		return claims.Name
	}
	if claims.Email != "" {
		if at := strings.Index(claims.Email, "@"); at > 0 {
			return claims.Email[:at]
		}
		return claims.Email
	}

	prefix := externalID
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return "User-" + prefix
}

func cacheKey(externalID string) string {
	return "ext:" + externalID
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
