package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// EncodingVersion is prefixed to every persisted value so that future
// schema changes can add new versions while older payloads stay
// decodable: new versions are appended, never substituted in place.
type EncodingVersion uint8

const CurrentVersion EncodingVersion = 1

// Encode writes v as length-prefixed, canonical RLP behind a version byte.
func Encode(v interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(CurrentVersion))
	out = append(out, body...)
	return out, nil
}

// Decode reads a value written by Encode. Unknown versions are rejected so
// callers can decide whether to migrate rather than silently misparse.
func Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("decode: empty payload")
	}
	version := EncodingVersion(data[0])
	switch version {
	case CurrentVersion:
		if err := rlp.DecodeBytes(data[1:], v); err != nil {
			return fmt.Errorf("decode v%d: %w", version, err)
		}
		return nil
	default:
		return fmt.Errorf("decode: unsupported encoding version %d", version)
	}
}
