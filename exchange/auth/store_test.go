package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/hourex/exchange/types"
)

func TestRegisterAndLogin(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Register("alice", "secret"))
	assert.ErrorIs(t, s.Register("alice", "other"), types.ErrConflict)
	assert.ErrorIs(t, s.Register("", "pw"), types.ErrBadRequest)
	assert.ErrorIs(t, s.Register("bob", "   "), types.ErrBadRequest)

	token, err := s.Login("alice", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, ok := s.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, "alice", user)

	_, err = s.Login("alice", "wrong")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = s.Login("nobody", "secret")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestLoginTrimsWhitespace(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(" alice ", "secret"))

	token, err := s.Login("alice", " secret ")
	require.NoError(t, err)
	user, _ := s.Resolve(token)
	assert.Equal(t, "alice", user)
}

func TestChangePasswordRevokesTokens(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register("alice", "old"))

	t1, err := s.Login("alice", "old")
	require.NoError(t, err)
	t2, err := s.Login("alice", "old")
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangePassword("alice", "wrong", "new"), types.ErrUnauthorized)
	assert.ErrorIs(t, s.ChangePassword("nobody", "old", "new"), types.ErrUnauthorized)
	assert.ErrorIs(t, s.ChangePassword("alice", "old", ""), types.ErrBadRequest)

	require.NoError(t, s.ChangePassword("alice", "old", "new"))

	_, ok := s.Resolve(t1)
	assert.False(t, ok)
	_, ok = s.Resolve(t2)
	assert.False(t, ok)

	_, err = s.Login("alice", "old")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = s.Login("alice", "new")
	assert.NoError(t, err)
}

func TestDNASubmitAndLogin(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register("alice", "secret"))

	assert.ErrorIs(t, s.SubmitDNA("alice", "secret", "ACGT"), types.ErrBadRequest)
	assert.ErrorIs(t, s.SubmitDNA("alice", "wrong", "ACGTGA"), types.ErrUnauthorized)
	assert.ErrorIs(t, s.SubmitDNA("nobody", "secret", "ACGTGA"), types.ErrUnauthorized)

	// Outer whitespace and case are normalized away.
	require.NoError(t, s.SubmitDNA("alice", "secret", " acgtga "))
	// Interior whitespace is not: the sample must be pure ACGT.
	assert.ErrorIs(t, s.SubmitDNA("alice", "secret", "acg tga"), types.ErrBadRequest)
	// Duplicates are accepted silently, stored once.
	require.NoError(t, s.SubmitDNA("alice", "secret", "ACGTGA"))
	assert.Len(t, s.DNASamples()["alice"], 1)

	token, err := s.DNALogin("alice", "ACGTGA")
	require.NoError(t, err)
	user, ok := s.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, "alice", user)

	// Below the 100k-codon threshold no edits are tolerated.
	_, err = s.DNALogin("alice", "ACGTGT")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = s.DNALogin("alice", "ACGTX")
	assert.ErrorIs(t, err, types.ErrBadRequest)
	_, err = s.DNALogin("bob", "ACGTGA")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestRestoreDropsTokens(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register("alice", "secret"))
	require.NoError(t, s.SubmitDNA("alice", "secret", "ACGTGA"))
	token, err := s.Login("alice", "secret")
	require.NoError(t, err)

	users := s.Users()
	samples := s.DNASamples()

	restored := NewStore()
	restored.Restore(users, samples)

	_, ok := restored.Resolve(token)
	assert.False(t, ok)

	_, err = restored.Login("alice", "secret")
	assert.NoError(t, err)
	_, err = restored.DNALogin("alice", "ACGTGA")
	assert.NoError(t, err)
}
