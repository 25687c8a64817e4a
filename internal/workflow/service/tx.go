package service

import (
	"context"
	"sync"
	"time"

	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
)

// StoreTx provides the atomic unit around gate recomputation and the step
// transition writes. Implementations wrap a database transaction holding a
// row lock on the Transaction record, or, in-memory, a per-transaction
// mutex. Two concurrent advances on the same transaction serialize here;
// the loser re-reads state and fails cleanly instead of double-advancing.
type StoreTx interface {
	RunInTx(ctx context.Context, txID id.TransactionID, fn func(txCtx context.Context) error) error
}

// defaultTxTimeout is the maximum duration for one workflow transaction.
const defaultTxTimeout = 5 * time.Second

// numShards spreads per-transaction locks across mutexes so unrelated
// transactions never contend.
const numShards = 128

// shardedTx is the in-memory StoreTx: a sharded mutex keyed by transaction
// ID. Sufficient for single-process deployments and tests.
type shardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx returns an in-memory transactional boundary.
func NewShardedTx() StoreTx {
	return &shardedTx{}
}

func (t *shardedTx) RunInTx(ctx context.Context, txID id.TransactionID, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashID(txID.String()) % numShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashID uses FNV-1a for even shard distribution.
func hashID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
