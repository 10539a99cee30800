package utils

import (
	"context"
	"errors"

	"linkvault/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrUserIDNotFound     = errors.New("userID not found in context")
	ErrUserIDNotString    = errors.New("userID in context is not a string")
	ErrUserEmailNotFound  = errors.New("userEmail not found in context")
	ErrUserEmailNotString = errors.New("userEmail in context is not a string")
	ErrRequestIDNotFound  = errors.New("requestID not found in context")
	ErrRequestIDNotString = errors.New("requestID in context is not a string")
)

// GetUserIDFromContext retrieves the authenticated user ID from the context.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	val := ctx.Value(contextkeys.UserIDKey)
	if val == nil {
		return "", ErrUserIDNotFound
	}
	userID, ok := val.(string)
	if !ok {
		return "", ErrUserIDNotString
	}
	return userID, nil
}

// GetUserEmailFromContext retrieves the authenticated user email from the context.
func GetUserEmailFromContext(ctx context.Context) (string, error) {
	val := ctx.Value(contextkeys.UserEmailKey)
	if val == nil {
		return "", ErrUserEmailNotFound
	}
	userEmail, ok := val.(string)
	if !ok {
		return "", ErrUserEmailNotString
	}
	return userEmail, nil
}

// GetRequestIDFromContext retrieves the request ID from the context.
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	val := ctx.Value(contextkeys.RequestIDKey)
	if val == nil {
		return "", ErrRequestIDNotFound
	}
	requestID, ok := val.(string)
	if !ok {
		return "", ErrRequestIDNotString
	}
	return requestID, nil
}

// Context builder functions

// WithUserID adds the authenticated user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}

// WithUserEmail adds the authenticated user email to context
func WithUserEmail(ctx context.Context, userEmail string) context.Context {
	return context.WithValue(ctx, contextkeys.UserEmailKey, userEmail)
}

// WithRequestID adds the request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// Optional getters that return default values instead of errors

// GetUserIDOrDefault retrieves the user ID from context or returns a default value
func GetUserIDOrDefault(ctx context.Context, def string) string {
	if v, err := GetUserIDFromContext(ctx); err == nil {
		return v
	}
	return def
}

// HasUserID reports whether the context carries an authenticated user ID
func HasUserID(ctx context.Context) bool {
	_, err := GetUserIDFromContext(ctx)
	return err == nil
}
