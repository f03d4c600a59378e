package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// testParams keeps hashing fast while exercising the real algorithm.
func testParams() Argon2Params {
	return Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Argon2Hasher {
	h, err := NewArgon2Hasher(testParams(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return h
}

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	h := newTestHasher(t)

	passwords := []string{
		"securepassword123",
		"12345678",
		"pässwörd-mit-ümlauten",
		"with spaces and $dollar$ signs",
		strings.Repeat("x", MaxPasswordBytes),
	}

	for _, p := range passwords {
		encoded, err := h.Hash(p)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))
		assert.NotContains(t, encoded, p)
		assert.True(t, h.Verify(p, encoded), "password %q should verify", p)
	}
}

func TestArgon2Hasher_WrongPassword(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("securepassword123")
	require.NoError(t, err)

	for _, p := range []string{"securepassword124", "Securepassword123", "securepassword12", "", "wrong"} {
		assert.False(t, h.Verify(p, encoded), "password %q must not verify", p)
	}
}

func TestArgon2Hasher_FreshSaltPerCall(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("securepassword123")
	require.NoError(t, err)
	b, err := h.Hash("securepassword123")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("securepassword123", a))
	assert.True(t, h.Verify("securepassword123", b))
}

func TestArgon2Hasher_TooLong(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.Hash(strings.Repeat("x", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	longest := strings.Repeat("x", MaxPasswordBytes)
	encoded, err := h.Hash(longest)
	require.NoError(t, err)
	assert.True(t, h.Verify(longest, encoded))

	// Same prefix, one byte over the cap.
	assert.False(t, h.Verify(longest+"x", encoded))
	assert.False(t, h.Verify(strings.Repeat("x", 20<<20), encoded))
}

func TestArgon2Hasher_VerifyUsesStoredParams(t *testing.T) {
	old := newTestHasher(t)
	encoded, err := old.Hash("securepassword123")
	require.NoError(t, err)

	params := testParams()
	params.Iterations = 2
	params.Memory = 2048
	current, err := NewArgon2Hasher(params, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, current.Verify("securepassword123", encoded))
}

func TestArgon2Hasher_CorruptRecord(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h, err := NewArgon2Hasher(testParams(), zap.New(core))
	require.NoError(t, err)

	valid, err := h.Hash("securepassword123")
	require.NoError(t, err)
	segments := strings.Split(valid, "$")

	corrupt := []string{
		"",
		"plaintext",
		"$2a$10$abcdefghijklmnopqrstuu5lzSbtDqoi2kt1WQfOwgB4dEFP0bE1S",
		"$argon2i$v=19$m=1024,t=1,p=1$" + segments[4] + "$" + segments[5],
		"$argon2id$v=16$m=1024,t=1,p=1$" + segments[4] + "$" + segments[5],
		"$argon2id$v=19$m=1024,t=0,p=1$" + segments[4] + "$" + segments[5],
		"$argon2id$v=19$m=1024,t=1,p=0$" + segments[4] + "$" + segments[5],
		"$argon2id$v=19$m=999999999,t=1,p=1$" + segments[4] + "$" + segments[5],
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$" + segments[5],
		"$argon2id$v=19$m=1024,t=1,p=1$" + segments[4] + "$",
		"$argon2id$v=19$garbage$" + segments[4] + "$" + segments[5],
	}

	for _, record := range corrupt {
		assert.False(t, h.Verify("securepassword123", record), "record %q must not verify", record)
	}

	assert.Equal(t, len(corrupt), logs.FilterMessage("corrupt stored hash").Len())
}

func TestArgon2Hasher_DummyHash(t *testing.T) {
	h := newTestHasher(t)

	dummy := h.DummyHash()
	require.NotEmpty(t, dummy)
	assert.Equal(t, dummy, h.DummyHash())
	assert.True(t, strings.HasPrefix(dummy, "$argon2id$"))

	_, _, _, err := decodeHash(dummy)
	require.NoError(t, err)
	assert.False(t, h.Verify("", dummy))
	assert.False(t, h.Verify("securepassword123", dummy))
}

func TestArgon2Params_Validate(t *testing.T) {
	assert.NoError(t, DefaultArgon2Params().Validate())

	tests := []struct {
		name   string
		mutate func(p *Argon2Params)
	}{
		{name: "zero iterations", mutate: func(p *Argon2Params) { p.Iterations = 0 }},
		{name: "zero parallelism", mutate: func(p *Argon2Params) { p.Parallelism = 0 }},
		{name: "memory below minimum", mutate: func(p *Argon2Params) { p.Memory = 8 }},
		{name: "short salt", mutate: func(p *Argon2Params) { p.SaltLength = 4 }},
		{name: "short key", mutate: func(p *Argon2Params) { p.KeyLength = 8 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultArgon2Params()
			tt.mutate(&p)
			assert.Error(t, p.Validate())

			_, err := NewArgon2Hasher(p, zaptest.NewLogger(t))
			assert.Error(t, err)
		})
	}
}
