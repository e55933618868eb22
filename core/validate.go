package core

import (
	"regexp"
	"strconv"
	"time"
)

const (
	minAddressLen   = 25
	maxAddressLen   = 34
	minMessageLen   = 40
	timestampDigits = 13
)

// Base58 alphabet: no 0, O, I or l.
var addressChars = regexp.MustCompile(`^[1-9a-km-zA-HJ-NP-Z]+$`)

// ValidateAddress checks the shape of a claimed identity. Each check has its
// own position in the order; all shape failures share the same reason except
// a missing address.
func ValidateAddress(address string) error {
	if address == "" {
		return Validation(ReasonNoAddress)
	}
	if !addressChars.MatchString(address) {
		return Validation(ReasonInvalidAddress)
	}
	if address[0] != '1' {
		return Validation(ReasonInvalidAddress)
	}
	if len(address) < minAddressLen || len(address) > maxAddressLen {
		return Validation(ReasonInvalidAddress)
	}
	return nil
}

// ValidateMessageShape checks a signed message is present and long enough to
// be a phrase.
func ValidateMessageShape(message string) error {
	if message == "" {
		return Validation(ReasonNoMessage)
	}
	if len(message) < minMessageLen {
		return Validation(ReasonInvalidMessage)
	}
	return nil
}

// ValidateSignatureShape checks a signature was supplied.
func ValidateSignatureShape(signature string) error {
	if signature == "" {
		return Validation(ReasonNoSignature)
	}
	return nil
}

// PhraseTimestamp parses the leading millisecond timestamp of a phrase.
func PhraseTimestamp(phrase string) (time.Time, bool) {
	if len(phrase) < timestampDigits {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(phrase[:timestampDigits], 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// WithinWindow reports whether the phrase timestamp lies in [now-PhraseTTL, now].
func WithinWindow(phrase string, now time.Time) bool {
	ts, ok := PhraseTimestamp(phrase)
	if !ok {
		return false
	}
	if ts.After(now) {
		return false
	}
	return !ts.Before(now.Add(-PhraseTTL))
}

// Identifier derives the pending-signature key from an address and the
// message it signed.
func Identifier(address, message string) string {
	if len(message) <= timestampDigits {
		return address + message
	}
	return address + message[len(message)-timestampDigits:]
}
