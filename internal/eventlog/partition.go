package eventlog

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Partition maps a message key onto one of n partitions. Every event of one
// transaction lands on the same partition, which keeps them ordered.
func Partition(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

// StreamName is the Redis stream backing one partition of a topic.
func StreamName(prefix, topic string, partition int) string {
	return prefix + topic + ":" + strconv.Itoa(partition)
}
