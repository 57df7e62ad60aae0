package journal

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is the BLAKE3 link of one journal entry.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// chainKey separates journal hashes from any other BLAKE3 use. Changing it
// invalidates every existing journal.
var chainKey = [32]byte{
	't', 'i', 'c', 'k', 'e', 't', '-', 'l', 'e', 'd', 'g', 'e', 'r', '.',
	'j', 'o', 'u', 'r', 'n', 'a', 'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// link hashes prev || seq || topic || payload. The topic is length prefixed
// so it cannot bleed into the payload.
func link(prev Hash, seq uint64, topic string, payload []byte) Hash {
	hasher, err := blake3.NewKeyed(chainKey[:])
	if err != nil {
		panic("journal: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var num [8]byte
	hasher.Write(prev[:])
	binary.BigEndian.PutUint64(num[:], seq)
	hasher.Write(num[:])
	binary.BigEndian.PutUint64(num[:], uint64(len(topic)))
	hasher.Write(num[:])
	hasher.Write([]byte(topic))
	hasher.Write(payload)

	var out Hash
	copy(out[:], hasher.Sum(nil))
	return out
}
