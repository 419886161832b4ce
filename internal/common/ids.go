package common

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// PeerId is a monotonically allocated, process-local 64-bit identifier,
// unique for as long as the peer is live. Never derived from anything
// peer-supplied (spec §9 "Global peer-id counter").
type PeerId uint64

var peerIDCounter atomic.Uint64

// NextPeerID returns the next globally unique PeerId for this process.
func NextPeerID() PeerId {
	return PeerId(peerIDCounter.Add(1))
}

// NewSessionULID mints a ULID used only for internal structured-log
// correlation (session records, the peerstore-style snapshot) -- never
// exposed to browsers, which only ever see the 6-char room id.
func NewSessionULID() (ulid.ULID, error) {
	return ulid.New(ulid.Now(), rand.Reader)
}

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const roomIDLength = 6

// NewRoomID returns a uniformly random 6-character [A-Z0-9] id (spec
// §6.5). Callers are responsible for retrying on collision against the
// room registry; this function has no knowledge of existing rooms.
func NewRoomID() (string, error) {
	buf := make([]byte, roomIDLength)
	alphabetSize := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}
		buf[i] = roomIDAlphabet[n.Int64()]
	}
	return string(buf), nil
}
