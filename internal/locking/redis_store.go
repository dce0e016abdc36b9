package locking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout:
//
//	seatlock:<concert:section:seat>   hash  holder/operation/acquired_at/expires_at
//	seatlock:expiry                   zset  member=seat key, score=expires_at (unix ms)
//	seatlock:concert:<concertID>      set   seat keys held for that concert
//
// Logical expiry is the expires_at field; the hash also carries a Redis TTL
// with a generous grace so abandoned keys cannot outlive a dead sweeper.
const (
	redisLockPrefix    = "seatlock:"
	redisExpiryIndex   = "seatlock:expiry"
	redisConcertPrefix = "seatlock:concert:"

	redisLockGrace = 10 * time.Minute
	reapBatchSize  = 512
)

// Lua script for atomic lock acquisition. Conflict detection, same-holder
// renewal/upgrade, and index maintenance happen in one round trip so two
// concurrent requests for the same seat cannot interleave.
const luaSeatLockAcquire = `
-- KEYS[1] = lock hash, KEYS[2] = expiry zset, KEYS[3] = concert set
-- ARGV[1] = holder, ARGV[2] = operation, ARGV[3] = now (unix ms)
-- ARGV[4] = expires_at (unix ms), ARGV[5] = key ttl seconds, ARGV[6] = seat member

local cur_holder = redis.call("HGET", KEYS[1], "holder")
if cur_holder then
    local cur_expires = redis.call("HGET", KEYS[1], "expires_at")
    if cur_expires and tonumber(cur_expires) > tonumber(ARGV[3]) then
        local cur_op = redis.call("HGET", KEYS[1], "operation")
        local cur_acquired = redis.call("HGET", KEYS[1], "acquired_at")
        if cur_holder ~= ARGV[1] then
            return {0, cur_holder, cur_op, cur_acquired, cur_expires}
        end
        -- Same holder: renew, and never downgrade a processing lock.
        if cur_op ~= "processing" then
            cur_op = ARGV[2]
        end
        redis.call("HSET", KEYS[1], "operation", cur_op, "expires_at", ARGV[4])
        redis.call("EXPIRE", KEYS[1], ARGV[5])
        redis.call("ZADD", KEYS[2], ARGV[4], ARGV[6])
        return {2, ARGV[1], cur_op, cur_acquired, ARGV[4]}
    end
end

redis.call("HSET", KEYS[1],
    "holder", ARGV[1],
    "operation", ARGV[2],
    "acquired_at", ARGV[3],
    "expires_at", ARGV[4])
redis.call("EXPIRE", KEYS[1], ARGV[5])
redis.call("ZADD", KEYS[2], ARGV[4], ARGV[6])
redis.call("SADD", KEYS[3], ARGV[6])
return {1, ARGV[1], ARGV[2], ARGV[3], ARGV[4]}
`

// Lua script for owner-checked release.
const luaSeatLockRelease = `
-- KEYS[1] = lock hash, KEYS[2] = expiry zset, KEYS[3] = concert set
-- ARGV[1] = holder, ARGV[2] = seat member

local cur_holder = redis.call("HGET", KEYS[1], "holder")
if not cur_holder then
    return 0
end
if cur_holder ~= ARGV[1] then
    return -1
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[2])
redis.call("SREM", KEYS[3], ARGV[2])
return 1
`

// Lua script for owner-checked renewal of an unexpired lock.
const luaSeatLockRenew = `
-- KEYS[1] = lock hash, KEYS[2] = expiry zset
-- ARGV[1] = holder, ARGV[2] = now (unix ms), ARGV[3] = expires_at (unix ms)
-- ARGV[4] = key ttl seconds, ARGV[5] = seat member

local cur_holder = redis.call("HGET", KEYS[1], "holder")
if not cur_holder or cur_holder ~= ARGV[1] then
    return 0
end
local cur_expires = redis.call("HGET", KEYS[1], "expires_at")
if not cur_expires or tonumber(cur_expires) <= tonumber(ARGV[2]) then
    return 0
end
redis.call("HSET", KEYS[1], "expires_at", ARGV[3])
redis.call("EXPIRE", KEYS[1], ARGV[4])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[5])
return 1
`

// Lua script for the expiry sweep. Candidates come from the expiry index and
// are re-validated against the live hash before deletion, since a renewal may
// have raced with the sweep.
const luaSeatLockReap = `
-- KEYS[1] = expiry zset
-- ARGV[1] = now (unix ms), ARGV[2] = batch limit
-- ARGV[3] = lock key prefix, ARGV[4] = concert set prefix

local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
local reclaimed = {}
for i = 1, #members do
    local member = members[i]
    local key = ARGV[3] .. member
    local expires = redis.call("HGET", key, "expires_at")
    if expires and tonumber(expires) > tonumber(ARGV[1]) then
        -- Renewed since the index entry was written; refresh the score.
        redis.call("ZADD", KEYS[1], expires, member)
    else
        local holder = redis.call("HGET", key, "holder")
        local op = redis.call("HGET", key, "operation")
        redis.call("DEL", key)
        redis.call("ZREM", KEYS[1], member)
        local concert = string.match(member, "^([^:]+)")
        if concert then
            redis.call("SREM", ARGV[4] .. concert, member)
        end
        table.insert(reclaimed, member)
        table.insert(reclaimed, holder or "")
        table.insert(reclaimed, op or "")
    end
end
return reclaimed
`

// RedisStore is the distributed Store. All invariant-sensitive writes run as
// Lua scripts so the at-most-one-lock guarantee holds cluster-wide.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// PreloadScripts loads the Lua scripts into Redis so later calls can use
// EVALSHA. Safe to skip; every call site falls back to EVAL.
func (s *RedisStore) PreloadScripts(ctx context.Context) error {
	for _, script := range []string{luaSeatLockAcquire, luaSeatLockRelease, luaSeatLockRenew, luaSeatLockReap} {
		if err := s.client.ScriptLoad(ctx, script).Err(); err != nil {
			return fmt.Errorf("failed to load seat lock script: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	result, err := s.client.EvalSha(ctx, script, keys, args...).Result()
	if err != nil {
		// Script not cached yet; load and execute in one go.
		result, err = s.client.Eval(ctx, script, keys, args...).Result()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *RedisStore) Acquire(ctx context.Context, seat SeatKey, holder string, op Operation, ttl time.Duration) (AcquireOutcome, *LockRecord, error) {
	member := seat.String()
	now := time.Now()
	expiresAt := now.Add(ttl)

	keys := []string{redisLockPrefix + member, redisExpiryIndex, redisConcertPrefix + seat.ConcertID}
	args := []interface{}{
		holder,
		string(op),
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(expiresAt.UnixMilli(), 10),
		strconv.Itoa(int((ttl + redisLockGrace).Seconds())),
		member,
	}

	result, err := s.eval(ctx, luaSeatLockAcquire, keys, args...)
	if err != nil {
		return OutcomeConflict, nil, fmt.Errorf("failed to execute seat lock acquire: %w", err)
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 5 {
		return OutcomeConflict, nil, fmt.Errorf("unexpected result format from acquire script")
	}

	code, ok := resultArray[0].(int64)
	if !ok {
		return OutcomeConflict, nil, fmt.Errorf("invalid outcome flag in acquire script result")
	}

	record := &LockRecord{
		Seat:       seat,
		Holder:     asString(resultArray[1]),
		Operation:  Operation(asString(resultArray[2])),
		AcquiredAt: msToTime(asString(resultArray[3])),
		ExpiresAt:  msToTime(asString(resultArray[4])),
	}

	switch code {
	case 0:
		return OutcomeConflict, record, nil
	case 2:
		return OutcomeRenewed, record, nil
	default:
		return OutcomeGranted, record, nil
	}
}

func (s *RedisStore) Release(ctx context.Context, seat SeatKey, holder string) (bool, error) {
	member := seat.String()
	keys := []string{redisLockPrefix + member, redisExpiryIndex, redisConcertPrefix + seat.ConcertID}

	result, err := s.eval(ctx, luaSeatLockRelease, keys, holder, member)
	if err != nil {
		return false, fmt.Errorf("failed to execute seat lock release: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result format from release script")
	}
	return code == 1, nil
}

func (s *RedisStore) Renew(ctx context.Context, seat SeatKey, holder string, ttl time.Duration) (bool, error) {
	member := seat.String()
	now := time.Now()
	keys := []string{redisLockPrefix + member, redisExpiryIndex}
	args := []interface{}{
		holder,
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(ttl).UnixMilli(), 10),
		strconv.Itoa(int((ttl + redisLockGrace).Seconds())),
		member,
	}

	result, err := s.eval(ctx, luaSeatLockRenew, keys, args...)
	if err != nil {
		return false, fmt.Errorf("failed to execute seat lock renew: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result format from renew script")
	}
	return code == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, seat SeatKey) (*LockRecord, error) {
	fields, err := s.client.HGetAll(ctx, redisLockPrefix+seat.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read seat lock: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	record := recordFromFields(seat, fields)
	return &record, nil
}

func (s *RedisStore) ListByConcert(ctx context.Context, concertID string) ([]LockRecord, error) {
	members, err := s.client.SMembers(ctx, redisConcertPrefix+concertID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list concert locks: %w", err)
	}
	return s.loadRecords(ctx, members)
}

func (s *RedisStore) ReapExpired(ctx context.Context, now time.Time) ([]LockRecord, error) {
	args := []interface{}{
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.Itoa(reapBatchSize),
		redisLockPrefix,
		redisConcertPrefix,
	}

	result, err := s.eval(ctx, luaSeatLockReap, []string{redisExpiryIndex}, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute seat lock reap: %w", err)
	}

	resultArray, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result format from reap script")
	}

	var reclaimed []LockRecord
	for i := 0; i+2 < len(resultArray); i += 3 {
		seat, valid := ParseSeatKey(asString(resultArray[i]))
		if !valid {
			continue
		}
		reclaimed = append(reclaimed, LockRecord{
			Seat:      seat,
			Holder:    asString(resultArray[i+1]),
			Operation: Operation(asString(resultArray[i+2])),
			ExpiresAt: now,
		})
	}
	return reclaimed, nil
}

func (s *RedisStore) Stats(ctx context.Context) (SystemStats, error) {
	now := time.Now()
	members, err := s.client.ZRangeByScore(ctx, redisExpiryIndex, &redis.ZRangeBy{
		Min: strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return SystemStats{}, fmt.Errorf("failed to read expiry index: %w", err)
	}

	records, err := s.loadRecords(ctx, members)
	if err != nil {
		return SystemStats{}, err
	}

	stats := SystemStats{}
	holders := make(map[string]struct{})
	for _, record := range records {
		switch record.Operation {
		case OperationSelecting:
			stats.ActiveSelectingLocks++
		case OperationProcessing:
			stats.ActiveProcessingLocks++
		}
		stats.TotalActiveLocks++
		holders[record.Holder] = struct{}{}
	}
	stats.ActiveHolders = len(holders)
	return stats, nil
}

// loadRecords fetches lock hashes for the given members, dropping entries
// that disappeared or logically expired between index read and hash read.
func (s *RedisStore) loadRecords(ctx context.Context, members []string) ([]LockRecord, error) {
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.HGetAll(ctx, redisLockPrefix+member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load seat locks: %w", err)
	}

	now := time.Now()
	var records []LockRecord
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		seat, valid := ParseSeatKey(members[i])
		if !valid {
			continue
		}
		record := recordFromFields(seat, fields)
		if record.Expired(now) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func recordFromFields(seat SeatKey, fields map[string]string) LockRecord {
	return LockRecord{
		Seat:       seat,
		Holder:     fields["holder"],
		Operation:  Operation(fields["operation"]),
		AcquiredAt: msToTime(fields["acquired_at"]),
		ExpiresAt:  msToTime(fields["expires_at"]),
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func msToTime(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
