package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSetContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithUserID(ctx, "user-1")
	ctx = WithUserEmail(ctx, "user@example.com")
	ctx = WithRequestID(ctx, "req-1")

	userID, err := GetUserIDFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	email, err := GetUserEmailFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	reqID, err := GetRequestIDFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "req-1", reqID)

	assert.True(t, HasUserID(ctx))
	assert.Equal(t, "user-1", GetUserIDOrDefault(ctx, "default"))
}

func TestContextUtils_MissingValues(t *testing.T) {
	ctx := context.Background()

	_, err := GetUserIDFromContext(ctx)
	assert.ErrorIs(t, err, ErrUserIDNotFound)

	_, err = GetUserEmailFromContext(ctx)
	assert.ErrorIs(t, err, ErrUserEmailNotFound)

	assert.Equal(t, "anonymous", GetUserIDOrDefault(ctx, "anonymous"))
	assert.False(t, HasUserID(ctx))
}
