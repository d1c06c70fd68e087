package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/suteetoe/thing-service/pkg/cache"
	"github.com/suteetoe/thing-service/pkg/config"
)

func TestOpenCache_DisabledWithoutAddress(t *testing.T) {
	c, closeCache := openCache(context.Background(), &config.Config{})
	defer closeCache()
	assert.IsType(t, cache.NoopCache{}, c)
}

func TestOpenCache_FallsBackWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, closeCache := openCache(ctx, &config.Config{
		ServiceName: "thing-service",
		Cache:       config.CacheConfig{RedisAddr: "127.0.0.1:1"},
	})
	defer closeCache()
	assert.IsType(t, cache.NoopCache{}, c)
}

func TestNewJWT(t *testing.T) {
	jwt := NewJWT(&config.Config{
		ServiceName: "thing-service",
		JWT:         config.JWTConfig{SigningKey: "k", ExpirationHours: 2},
	})
	assert.Equal(t, 2*time.Hour, jwt.TTL())

	token, err := jwt.GenerateToken("ada@example.com", 1)
	assert.NoError(t, err)
	claims, err := jwt.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "thing-service", claims.Issuer)
}
