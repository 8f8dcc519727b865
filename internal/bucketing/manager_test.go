package bucketing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserBucketIsStableAndInRange(t *testing.T) {
	bm := NewManager(8)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("user%d", i)
		b := bm.UserBucket(name)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 8)
		assert.Equal(t, b, NewManager(8).UserBucket(name))
		seen[b] = true
	}
	assert.Len(t, seen, 8)
}

func TestDefaults(t *testing.T) {
	bm := NewManager(0)
	assert.Equal(t, DefaultUserBuckets, bm.UserBuckets())
	assert.Len(t, bm.Buckets(), DefaultUserBuckets)
}

func TestAssign(t *testing.T) {
	bm := NewManager(4)
	loc := time.FixedZone("EST", -5*3600)
	a := bm.Assign("jdoe", time.Date(2024, time.March, 4, 22, 0, 0, 0, loc))
	assert.Equal(t, "2024-03-05", a.DateBucket)
	assert.Equal(t, bm.UserBucket("jdoe"), a.UserBucket)
}
