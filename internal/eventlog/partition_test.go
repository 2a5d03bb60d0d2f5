package eventlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	t.Run("stable for a key", func(t *testing.T) {
		first := Partition("4f1c2d7e-txn", 6)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Partition("4f1c2d7e-txn", 6))
		}
	})

	t.Run("within range", func(t *testing.T) {
		seen := map[int]bool{}
		for i := 0; i < 200; i++ {
			p := Partition(fmt.Sprintf("txn-%d", i), 4)
			assert.GreaterOrEqual(t, p, 0)
			assert.Less(t, p, 4)
			seen[p] = true
		}
		assert.Len(t, seen, 4)
	})

	t.Run("single partition", func(t *testing.T) {
		assert.Equal(t, 0, Partition("anything", 1))
		assert.Equal(t, 0, Partition("anything", 0))
	})
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "ips.tx.validated:2", StreamName("", "ips.tx.validated", 2))
	assert.Equal(t, "test:ips.tx.failed:0", StreamName("test:", "ips.tx.failed", 0))
}
