package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsedID, issuedAt, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsedID)
	assert.WithinDuration(t, time.Now(), issuedAt, 5*time.Second)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, uuid.New(), time.Hour)
	require.NoError(t, err)

	_, _, err = ParseToken("different-secret", token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(testSecret, uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, _, err = ParseToken(testSecret, token)
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, _, err := ParseToken(testSecret, "not.a.token")
	assert.Error(t, err)
}
