package redis

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"linkvault/internal/emulator/domain/model"

	"github.com/redis/go-redis/v9"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// IssueRefreshToken mints a random refresh token for the user and stores its
// session record under the token hash. The raw token exists only in the
// response to the client. The hash is also tracked in a per-user set so
// logout can revoke every live session at once.
func (s *Store) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	token := hex.EncodeToString(buf)
	hash := hashToken(token)

	sess := model.RefreshSession{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to marshal refresh session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, RefreshKey(hash), data, s.refreshTTL)
	pipe.SAdd(ctx, UserRefreshSetKey(userID), hash)
	pipe.Expire(ctx, UserRefreshSetKey(userID), s.refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to save refresh session: %w", err)
	}

	return token, nil
}

// RotateRefreshToken consumes a refresh token and issues a replacement. The
// presented token is deleted before the new one is minted, so each token
// grants at most one rotation.
func (s *Store) RotateRefreshToken(ctx context.Context, token string) (string, string, error) {
	hash := hashToken(token)

	data, err := s.client.GetDel(ctx, RefreshKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", ErrRefreshTokenNotFound
		}
		return "", "", fmt.Errorf("failed to consume refresh session: %w", err)
	}

	var sess model.RefreshSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return "", "", fmt.Errorf("failed to unmarshal refresh session: %w", err)
	}

	s.client.SRem(ctx, UserRefreshSetKey(sess.UserID), hash)

	next, err := s.IssueRefreshToken(ctx, sess.UserID)
	if err != nil {
		return "", "", err
	}

	return sess.UserID, next, nil
}

// RevokeUserRefreshTokens deletes every refresh session held by one user.
// Hashes of already-expired sessions may linger in the set; deleting them is
// a no-op.
func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	hashes, err := s.client.SMembers(ctx, UserRefreshSetKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list refresh sessions: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, hash := range hashes {
		pipe.Del(ctx, RefreshKey(hash))
	}
	pipe.Del(ctx, UserRefreshSetKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke refresh sessions: %w", err)
	}

	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
