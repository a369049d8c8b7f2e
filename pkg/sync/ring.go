package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring mapping arbitrary keys onto a fixed set of
// entries.
type ring[T any] struct {
	hashRing *treemap.Map

	// minEntry caches the min entry in hashRing, since treemap.Map.Min() is
	// O(log n).
	minEntry T
}

// newRing returns a new consistent hash ring where every entry is placed
// replicationFactor times.
func newRing[T any](entries map[string]T, replicationFactor uint) *ring[T] {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for k, v := range entries {
		keyHash, _ := murmur3.Sum128([]byte(k))

		var keyHashBytes [8]byte
		binary.LittleEndian.PutUint64(keyHashBytes[:], keyHash)

		for i := uint32(0); i < uint32(replicationFactor); i++ {
			var indexBytes [4]byte
			binary.LittleEndian.PutUint32(indexBytes[:], i)

			hasher := murmur3.New128()
			_, _ = hasher.Write(keyHashBytes[:])
			_, _ = hasher.Write(indexBytes[:])
			hash, _ := hasher.Sum128()

			hashRing.Put(int64(hash), v)
		}
	}

	r := &ring[T]{hashRing: hashRing}
	if _, minEntry := hashRing.Min(); minEntry != nil {
		r.minEntry = minEntry.(T)
	}
	return r
}

// shard consistently hashes the key and returns the entry it maps to.
func (r *ring[T]) shard(key []byte) T {
	raw, _ := murmur3.Sum128(key)

	_, entry := r.hashRing.Ceiling(int64(raw))
	if entry != nil {
		return entry.(T)
	}
	return r.minEntry
}
