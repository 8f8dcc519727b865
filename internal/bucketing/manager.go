package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

const DefaultUserBuckets = 16

// Manager assigns storage partitions. Buckets depend only on the key, so
// the same user always lands in the same partition across runs.
type Manager struct {
	userBuckets int
	hasherPool  sync.Pool
}

type Assignment struct {
	UserBucket int    `json:"user_bucket"`
	DateBucket string `json:"date_bucket"`
}

func NewManager(userBuckets int) *Manager {
	if userBuckets <= 0 {
		userBuckets = DefaultUserBuckets
	}
	bm := &Manager{userBuckets: userBuckets}

	// Create pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return bm
}

// UserBucket returns a consistent bucket in [0, userBuckets).
func (bm *Manager) UserBucket(username string) int {
	return int(bm.getHash(username) % uint64(bm.userBuckets))
}

// DateBucket is the UTC calendar day of t.
func (bm *Manager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (bm *Manager) Assign(username string, t time.Time) Assignment {
	return Assignment{
		UserBucket: bm.UserBucket(username),
		DateBucket: bm.DateBucket(t),
	}
}

// Buckets lists every user bucket, for partition scans.
func (bm *Manager) Buckets() []int {
	out := make([]int, bm.userBuckets)
	for i := range out {
		out[i] = i
	}
	return out
}

func (bm *Manager) UserBuckets() int {
	return bm.userBuckets
}

func (bm *Manager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
