package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

const (
	phraseSegments   = 4
	phraseSegmentLen = 13
	phraseAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewLoginPhrase builds a phrase stamped with now. The phrase is the
// millisecond timestamp followed by four random lowercase alphanumeric segments.
func NewLoginPhrase(now time.Time) (*LoginPhrase, error) {
	suffix := make([]byte, 0, phraseSegments*phraseSegmentLen)
	max := big.NewInt(int64(len(phraseAlphabet)))
	for i := 0; i < phraseSegments*phraseSegmentLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, fmt.Errorf("failed to generate phrase: %w", err)
		}
		suffix = append(suffix, phraseAlphabet[n.Int64()])
	}

	createdAt := time.UnixMilli(now.UnixMilli())
	return &LoginPhrase{
		Phrase:    strconv.FormatInt(createdAt.UnixMilli(), 10) + string(suffix),
		CreatedAt: createdAt,
		ExpireAt:  createdAt.Add(PhraseTTL),
	}, nil
}
