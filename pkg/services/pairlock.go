package services

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// pairLockShards is a power of two so the hash maps onto shards with a
// mask instead of a modulo.
const pairLockShards = 64

// pairLock serializes writes at (contract, billing record) granularity.
// Two sweeps racing on the same pair take the same shard mutex, so their
// read-evaluate-upsert sections cannot interleave; unrelated pairs usually
// land on different shards and proceed in parallel.
type pairLock struct {
	shards [pairLockShards]sync.Mutex
}

func newPairLock() *pairLock {
	return &pairLock{}
}

func (l *pairLock) lock(contractID, billingRecordID uuid.UUID) func() {
	shard := &l.shards[pairShard(contractID, billingRecordID)]
	shard.Lock()
	return shard.Unlock
}

func pairShard(contractID, billingRecordID uuid.UUID) uint32 {
	h := fnv.New32a()
	h.Write(contractID[:])
	h.Write(billingRecordID[:])
	return h.Sum32() & (pairLockShards - 1)
}
