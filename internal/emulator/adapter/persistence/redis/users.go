package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"linkvault/internal/emulator/domain/model"

	"github.com/redis/go-redis/v9"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// CreateUser stores a new user. The email index is claimed first with SETNX
// so two concurrent signups for the same address cannot both succeed.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, EmailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim email index: %w", err)
	}
	if !claimed {
		return ErrEmailTaken
	}

	if err := s.client.Set(ctx, UserKey(user.ID), data, 0).Err(); err != nil {
		// Release the index so the address is not permanently blocked.
		s.client.Del(ctx, EmailKey(user.Email))
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	data, err := s.client.Get(ctx, UserKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail retrieves a user through the email index.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	id, err := s.client.Get(ctx, EmailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve email index: %w", err)
	}

	return s.GetUser(ctx, id)
}
