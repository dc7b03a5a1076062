package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	userID := uuid.New()

	token, tokenID, err := m.Issue(userID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tokenID)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, tokenID.String(), claims.ID)
}

func TestTokenWrongSecret(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	token, _, err := m.Issue(uuid.New())
	require.NoError(t, err)

	other := NewTokenManager("different-secret", time.Hour)
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute)
	token, _, err := m.Issue(uuid.New())
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	_, err := m.Parse("not.a.token")
	assert.Error(t, err)
}
