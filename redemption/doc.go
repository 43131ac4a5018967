// Package redemption provides protocol.RedemptionGuard implementations that
// make each sealed token redeemable at most once within its lifetime.
//
// MemoryGuard keeps claims in process memory. RedisGuard and PostgresGuard
// share claims between gateway replicas.
package redemption
