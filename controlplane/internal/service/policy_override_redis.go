package service

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const policyOverridePrefix = "portal:policy:user:"

// RedisPolicyOverrides reads per-user policy names set by operators under
// portal:policy:user:<user id>.
type RedisPolicyOverrides struct {
	RDB *redis.Client
}

func NewRedisPolicyOverrides(rdb *redis.Client) *RedisPolicyOverrides {
	if rdb == nil {
		return nil
	}
	return &RedisPolicyOverrides{RDB: rdb}
}

func PolicyOverrideKey(userID string) string {
	return policyOverridePrefix + userID
}

func (r *RedisPolicyOverrides) PolicyOverride(ctx context.Context, userID string) (string, bool, error) {
	val, err := r.RDB.Get(ctx, PolicyOverrideKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	val = strings.TrimSpace(val)
	return val, val != "", nil
}

// SetPolicyOverride pins userID to the named policy; an empty name clears it.
func (r *RedisPolicyOverrides) SetPolicyOverride(ctx context.Context, userID, name string) error {
	if name == "" {
		return r.RDB.Del(ctx, PolicyOverrideKey(userID)).Err()
	}
	return r.RDB.Set(ctx, PolicyOverrideKey(userID), name, 0).Err()
}
