package verifier

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyOne = "0000000000000000000000000000000000000000000000000000000000000001"

func TestAddressFromPubKey(t *testing.T) {
	key, err := crypto.HexToECDSA(keyOne)
	require.NoError(t, err)

	assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", AddressFromPubKey(&key.PublicKey, true))
	assert.Equal(t, "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm", AddressFromPubKey(&key.PublicKey, false))
}

func TestCompactSize(t *testing.T) {
	assert.Equal(t, []byte{0x41}, compactSize(0x41))
	assert.Equal(t, []byte{0xfd, 0xfd, 0x00}, compactSize(0xfd))
	assert.Equal(t, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}, compactSize(0x10000))
}

func TestSignAndVerify(t *testing.T) {
	const message = "1565356121335e9obp7h17bykbbvub0ts488wnnmd12fe1pq88mq0v"
	v := NewMessageVerifier()

	for _, compressed := range []bool{true, false} {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		address := AddressFromPubKey(&key.PublicKey, compressed)

		sig, err := Sign(message, key, compressed)
		require.NoError(t, err)

		ok, err := v.Verify(message, address, sig)
		require.NoError(t, err)
		assert.True(t, ok, "compressed=%v", compressed)

		ok, err = v.Verify(message+"x", address, sig)
		require.NoError(t, err)
		assert.False(t, ok)

		other := AddressFromPubKey(&key.PublicKey, !compressed)
		ok, err = v.Verify(message, other, sig)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestVerifyMalformedSignature(t *testing.T) {
	v := NewMessageVerifier()
	address := "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"

	_, err := v.Verify("msg", address, "not base64!!")
	assert.ErrorIs(t, err, ErrSignatureEncoding)

	_, err = v.Verify("msg", address, base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrSignatureLength)

	bad := make([]byte, 65)
	bad[0] = 10
	_, err = v.Verify("msg", address, base64.StdEncoding.EncodeToString(bad))
	assert.ErrorIs(t, err, ErrSignatureHeader)

	segwit := make([]byte, 65)
	segwit[0] = headerBase + 8
	ok, err := v.Verify("msg", address, base64.StdEncoding.EncodeToString(segwit))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageHashLongMessage(t *testing.T) {
	short := MessageHash("a")
	long := MessageHash(strings.Repeat("a", 300))
	assert.Len(t, short, 32)
	assert.Len(t, long, 32)
	assert.NotEqual(t, short, long)
}
