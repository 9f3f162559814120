package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	encoded, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := VerifyPassword("secret123", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong-password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltedUnique(t *testing.T) {
	first, err := HashPassword("secret123")
	require.NoError(t, err)
	second, err := HashPassword("secret123")
	require.NoError(t, err)

	// 随机盐保证同一密码哈希不同
	assert.NotEqual(t, first, second)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	_, err := VerifyPassword("secret123", "not-a-valid-hash")
	assert.Error(t, err)

	_, err = VerifyPassword("secret123", "$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
	assert.Error(t, err)
}

func TestGenerateRoomCode(t *testing.T) {
	code, err := GenerateRoomCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	// 字母表不含易混淆字符
	for _, r := range code {
		assert.NotContains(t, "0O1I", string(r))
	}

	_, err = GenerateRoomCode(0)
	assert.Error(t, err)
}

func TestGenerateSessionID(t *testing.T) {
	first, err := GenerateSessionID()
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := GenerateSessionID()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
