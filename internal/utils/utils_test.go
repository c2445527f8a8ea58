package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken("secret", id, "juan@example.com", time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("secret", uuid.New(), "juan@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("sack-of-rice")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "sack-of-rice"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestNewSessionTokenIsRandom(t *testing.T) {
	a, err := NewSessionToken()
	require.NoError(t, err)
	b, err := NewSessionToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Offset: 0}, NewPagination(0, 0))
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Offset: 20}, NewPagination(3, 10))
	assert.Equal(t, maxPageSize, NewPagination(1, 1000).Limit)
}
