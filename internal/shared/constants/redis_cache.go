package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// Centralizes cache keys and TTL values for the Mintix application.
// Pattern: mintix:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Semi-static data (changes on admin action)
const (
	TTL_SEMI_STATIC_MEDIUM = 2 * time.Hour
	TTL_SEMI_STATIC_SHORT  = 1 * time.Hour
	TTL_SEMI_STATIC_QUICK  = 15 * time.Minute
)

// Dynamic data (changes on user action)
const (
	TTL_DYNAMIC_MEDIUM = 10 * time.Minute
	TTL_DYNAMIC_SHORT  = 5 * time.Minute
)

// Highly dynamic (real-time sensitive)
const (
	TTL_REALTIME_SHORT = 15 * time.Second
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "mintix"
)

// ================== CONCERTS MODULE ==================

const (
	CACHE_KEY_CONCERTS_APPROVED = CACHE_PREFIX + ":concerts:approved" // + :page:X:limit:Y
	CACHE_KEY_CONCERT_DETAIL    = CACHE_PREFIX + ":concerts:detail:uuid:" // + concert-id
	CACHE_KEY_CONCERT_SECTIONS  = CACHE_PREFIX + ":concerts:sections:uuid:" // + concert-id
)

const (
	TTL_CONCERTS_APPROVED = TTL_SEMI_STATIC_QUICK
	TTL_CONCERT_DETAIL    = TTL_SEMI_STATIC_SHORT
	TTL_CONCERT_SECTIONS  = TTL_SEMI_STATIC_MEDIUM
)

// ================== TICKETS MODULE ==================

const (
	// Minted seat sets are polled by every seat map on screen; keep the
	// TTL short so sold seats show up quickly without hammering Postgres.
	CACHE_KEY_MINTED_SEATS = CACHE_PREFIX + ":tickets:minted:concert:" // + concert-id
	CACHE_KEY_USER_TICKETS = CACHE_PREFIX + ":tickets:user:wallet:"   // + wallet-address

	CACHE_KEY_MARKET_LISTINGS = CACHE_PREFIX + ":market:listings" // + :page:X:limit:Y
	CACHE_KEY_MARKET_STATS    = CACHE_PREFIX + ":market:stats"
)

const (
	TTL_MINTED_SEATS    = TTL_REALTIME_SHORT
	TTL_USER_TICKETS    = TTL_DYNAMIC_SHORT
	TTL_MARKET_LISTINGS = TTL_DYNAMIC_SHORT
	TTL_MARKET_STATS    = TTL_DYNAMIC_MEDIUM
)

// ================== AUTH MODULE ==================

const (
	CACHE_KEY_AUTH_NONCE = CACHE_PREFIX + ":auth:nonce:wallet:" // + wallet-address
)

// ================== CACHE INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_CONCERTS_ALL = CACHE_PREFIX + ":concerts:*"
	PATTERN_INVALIDATE_MARKET_ALL   = CACHE_PREFIX + ":market:*"
	PATTERN_INVALIDATE_TICKETS_ALL  = CACHE_PREFIX + ":tickets:*"
)

// ================== HELPER FUNCTIONS ==================

func BuildConcertListKey(page, limit int) string {
	return CACHE_KEY_CONCERTS_APPROVED + ":page:" + fmt.Sprintf("%d", page) + ":limit:" + fmt.Sprintf("%d", limit)
}

func BuildConcertDetailKey(concertID string) string {
	return CACHE_KEY_CONCERT_DETAIL + concertID
}

func BuildConcertSectionsKey(concertID string) string {
	return CACHE_KEY_CONCERT_SECTIONS + concertID
}

func BuildMintedSeatsKey(concertID string) string {
	return CACHE_KEY_MINTED_SEATS + concertID
}

func BuildUserTicketsKey(wallet string) string {
	return CACHE_KEY_USER_TICKETS + wallet
}

func BuildMarketListingsKey(page, limit int) string {
	return CACHE_KEY_MARKET_LISTINGS + ":page:" + fmt.Sprintf("%d", page) + ":limit:" + fmt.Sprintf("%d", limit)
}

func BuildAuthNonceKey(wallet string) string {
	return CACHE_KEY_AUTH_NONCE + wallet
}
