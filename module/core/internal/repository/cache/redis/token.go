package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
)

// TokenStore reads device tokens from the low-latency store. The mobile app
// writes either a single token under user:{id}:fcm_token or a list under
// user:{id}:fcm_tokens; both shapes are accepted.
type TokenStore struct {
	rdb *goredis.Client
}

func NewTokenStore(rdb *goredis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

func (s *TokenStore) Tokens(ctx context.Context, userID string) ([]string, error) {
	val, err := s.rdb.Get(ctx, "user:"+userID+":fcm_token").Result()
	if err == nil && val != "" {
		return []string{val}, nil
	}
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}

	tokens, err := s.rdb.LRange(ctx, "user:"+userID+":fcm_tokens", 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
