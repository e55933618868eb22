package verifier

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/fluxauth/ports"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

const (
	messagePrefix  = "\x18Bitcoin Signed Message:\n"
	signatureLen   = 65
	headerBase     = 27
	compressedFlag = 4
	p2pkhVersion   = 0x00
)

var (
	ErrSignatureEncoding = errors.New("signature is not valid base64")
	ErrSignatureLength   = errors.New("signature must be 65 bytes")
	ErrSignatureHeader   = errors.New("invalid signature header byte")
)

// MessageVerifier checks Bitcoin signed messages against P2PKH addresses.
type MessageVerifier struct{}

var _ ports.Verifier = MessageVerifier{}

// NewMessageVerifier creates a Bitcoin signed-message verifier
func NewMessageVerifier() MessageVerifier {
	return MessageVerifier{}
}

// Verify recovers the signing key from a base64 compact signature and
// reports whether it hashes to the given address. Malformed signatures
// return an error; a well-formed signature by another key returns false.
func (MessageVerifier) Verify(message, address, signature string) (bool, error) {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, ErrSignatureEncoding
	}
	if len(raw) != signatureLen {
		return false, ErrSignatureLength
	}

	flag := int(raw[0]) - headerBase
	if flag < 0 {
		return false, ErrSignatureHeader
	}
	// Segwit headers are not used by ZelID addresses.
	if flag >= 8 {
		return false, nil
	}
	compressed := flag&compressedFlag != 0
	recovery := byte(flag & 3)
	if recovery > 1 {
		return false, nil
	}

	// go-ethereum expects R || S || V
	sig := make([]byte, signatureLen)
	copy(sig, raw[1:])
	sig[64] = recovery

	pub, err := crypto.SigToPub(MessageHash(message), sig)
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}
	return AddressFromPubKey(pub, compressed) == address, nil
}

// Sign produces a base64 compact signature over message in the format
// Verify accepts.
func Sign(message string, key *ecdsa.PrivateKey, compressed bool) (string, error) {
	sig, err := crypto.Sign(MessageHash(message), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	header := byte(headerBase) + sig[64]
	if compressed {
		header += compressedFlag
	}
	out := make([]byte, 0, signatureLen)
	out = append(out, header)
	out = append(out, sig[:64]...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// MessageHash is the double SHA-256 of the prefixed, length-tagged message.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	buf.WriteString(messagePrefix)
	buf.Write(compactSize(uint64(len(message))))
	buf.WriteString(message)

	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return second[:]
}

// AddressFromPubKey returns the Base58Check P2PKH address of the key.
func AddressFromPubKey(pub *ecdsa.PublicKey, compressed bool) string {
	var serialized []byte
	if compressed {
		serialized = crypto.CompressPubkey(pub)
	} else {
		serialized = crypto.FromECDSAPub(pub)
	}

	sum := sha256.Sum256(serialized)
	h := ripemd160.New()
	h.Write(sum[:])

	payload := append([]byte{p2pkhVersion}, h.Sum(nil)...)
	check := sha256.Sum256(payload)
	check = sha256.Sum256(check[:])
	return base58.Encode(append(payload, check[:4]...))
}

func compactSize(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		b := make([]byte, 3)
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(n))
		return b
	case n <= 0xffffffff:
		b := make([]byte, 5)
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], uint32(n))
		return b
	default:
		b := make([]byte, 9)
		b[0] = 0xff
		binary.LittleEndian.PutUint64(b[1:], n)
		return b
	}
}
