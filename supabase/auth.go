package supabase

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/supabase-community/gotrue-go/types"
)

// AdminUserAttributes is the body of an admin create-user request
type AdminUserAttributes struct {
	Email        string
	Password     string
	EmailConfirm bool
	UserMetadata map[string]interface{}
}

// AuthUser is the part of an auth identity the migration needs back
type AuthUser struct {
	ID           string
	Email        string
	UserMetadata map[string]interface{}
}

// CreateUser creates a confirmed auth identity. The returned id is always a
// valid UUID.
func (c *Client) CreateUser(ctx context.Context, attrs AdminUserAttributes) (*AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to create auth user %s", attrs.Email)
	}

	c.logger.WithField("email", attrs.Email).Debug("Creating auth user")
	password := attrs.Password
	resp, err := c.auth.AdminCreateUser(types.AdminCreateUserRequest{
		Email:        attrs.Email,
		Password:     &password,
		EmailConfirm: attrs.EmailConfirm,
		UserMetadata: attrs.UserMetadata,
	})
	if err != nil {
		return nil, authError(err, "failed to create auth user "+attrs.Email)
	}
	if resp.ID == uuid.Nil {
		return nil, errors.Errorf("auth user for %s was returned without an id", attrs.Email)
	}

	return &AuthUser{
		ID:           resp.ID.String(),
		Email:        resp.Email,
		UserMetadata: resp.UserMetadata,
	}, nil
}

// DeleteUser removes an auth identity by id
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "failed to delete auth user %s", id)
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return errors.Wrapf(err, "invalid auth user id %q", id)
	}

	c.logger.WithField("identity_id", id).Debug("Deleting auth user")
	if err := c.auth.AdminDeleteUser(types.AdminDeleteUserRequest{UserID: userID}); err != nil {
		return authError(err, "failed to delete auth user "+id)
	}
	return nil
}
