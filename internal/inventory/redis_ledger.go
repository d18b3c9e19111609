package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/pkg/clock"
)

// Redis key layout:
//
//	inventory:{ticketTypeID}   hash  capacity/available/reserved/sold/refunded
//	reservation:{token}        hash  ticket_type_id/quantity/created_at/expires_at
//	reservations:pending       zset  member=token score=expires_at unix
const (
	counterKeyPrefix     = "inventory:"
	reservationKeyPrefix = "reservation:"
	pendingIndexKey      = "reservations:pending"
)

// Script replies follow the {ok, ...} / {0, code, detail} convention so
// the Go side can map failures to typed errors.
var reserveScript = redis.NewScript(`
local counter_key = KEYS[1]
local reservation_key = KEYS[2]
local pending_key = KEYS[3]

local quantity = tonumber(ARGV[1])
local token = ARGV[2]
local ticket_type_id = ARGV[3]
local created_at = tonumber(ARGV[4])
local expires_at = tonumber(ARGV[5])

if not quantity or quantity <= 0 then
    return {0, "INVALID_QUANTITY", "0"}
end

local available = redis.call("HGET", counter_key, "available")
if not available then
    return {0, "UNKNOWN_TYPE", "0"}
end
available = tonumber(available)

if available < quantity then
    return {0, "INSUFFICIENT", tostring(available)}
end

redis.call("HINCRBY", counter_key, "available", -quantity)
redis.call("HINCRBY", counter_key, "reserved", quantity)

redis.call("HSET", reservation_key,
    "ticket_type_id", ticket_type_id,
    "quantity", quantity,
    "created_at", created_at,
    "expires_at", expires_at)
redis.call("ZADD", pending_key, expires_at, token)

return {1, tostring(available - quantity)}
`)

// finishScript settles a reservation: mode "commit" moves reserved to
// sold, mode "release" moves reserved back to available. Both delete the
// reservation and its pending-index entry in the same execution, so the
// sweeper and an explicit abort can never double-release a token.
var finishScript = redis.NewScript(`
local reservation_key = KEYS[1]
local pending_key = KEYS[2]
local counter_prefix = ARGV[1]
local token = ARGV[2]
local mode = ARGV[3]

local res = redis.call("HGETALL", reservation_key)
if #res == 0 then
    return {0, "NOT_FOUND", ""}
end

local data = {}
for i = 1, #res, 2 do
    data[res[i]] = res[i + 1]
end

local quantity = tonumber(data["quantity"])
local counter_key = counter_prefix .. data["ticket_type_id"]

redis.call("HINCRBY", counter_key, "reserved", -quantity)
if mode == "commit" then
    redis.call("HINCRBY", counter_key, "sold", quantity)
else
    redis.call("HINCRBY", counter_key, "available", quantity)
end

redis.call("DEL", reservation_key)
redis.call("ZREM", pending_key, token)

return {1, data["ticket_type_id"]}
`)

var refundScript = redis.NewScript(`
local counter_key = KEYS[1]
local quantity = tonumber(ARGV[1])

local sold = tonumber(redis.call("HGET", counter_key, "sold") or "-1")
if sold < 0 then
    return {0, "UNKNOWN_TYPE", "0"}
end
if sold < quantity then
    return {0, "EXCEEDS_SOLD", tostring(sold)}
end

redis.call("HINCRBY", counter_key, "sold", -quantity)
redis.call("HINCRBY", counter_key, "refunded", quantity)
return {1, ""}
`)

// RedisLedger is the Ledger implementation for multi-node deployments.
// Every counter mutation runs as a single Lua script, which gives the
// same per-type linearizability the in-process ledger gets from its
// mutexes.
type RedisLedger struct {
	rdb *redis.Client
	clk clock.Clock
}

// NewRedisLedger creates a ledger backed by the given Redis client.
func NewRedisLedger(rdb *redis.Client, clk clock.Clock) *RedisLedger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &RedisLedger{rdb: rdb, clk: clk}
}

func counterKey(ticketTypeID string) string { return counterKeyPrefix + ticketTypeID }

func reservationKey(token string) string { return reservationKeyPrefix + token }

// Register installs counters for a ticket type.
func (l *RedisLedger) Register(ctx context.Context, ticketTypeID string, capacity, sold, reserved int) error {
	if capacity < 0 || sold < 0 || reserved < 0 || sold+reserved > capacity {
		return &domain.InvalidInputError{Field: "counters", Reason: "sold + reserved exceeds capacity"}
	}
	return l.rdb.HSet(ctx, counterKey(ticketTypeID), map[string]interface{}{
		"capacity":  capacity,
		"available": capacity - sold - reserved,
		"reserved":  reserved,
		"sold":      sold,
		"refunded":  0,
	}).Err()
}

// TryReserve atomically moves quantity units from available to reserved.
func (l *RedisLedger) TryReserve(ctx context.Context, ticketTypeID string, quantity int, ttl time.Duration) (*Reservation, error) {
	if quantity <= 0 {
		return nil, &domain.InvalidInputError{Field: "quantity", Reason: "must be positive"}
	}
	now := l.clk.Now()
	res := &Reservation{
		Token:        uuid.New().String(),
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}

	reply, err := reserveScript.Run(ctx, l.rdb,
		[]string{counterKey(ticketTypeID), reservationKey(res.Token), pendingIndexKey},
		quantity, res.Token, ticketTypeID, now.Unix(), res.ExpiresAt.Unix(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("reserve script: %w", err)
	}

	ok, code, detail := parseScriptReply(reply)
	if ok {
		return res, nil
	}
	switch code {
	case "INSUFFICIENT":
		available, _ := strconv.Atoi(detail)
		return nil, &domain.InsufficientInventoryError{
			TicketTypeID: ticketTypeID,
			Requested:    quantity,
			Available:    available,
		}
	case "UNKNOWN_TYPE":
		return nil, ErrUnknownTicketType
	default:
		return nil, fmt.Errorf("reserve rejected: %s", code)
	}
}

func (l *RedisLedger) finish(ctx context.Context, token, mode string) error {
	reply, err := finishScript.Run(ctx, l.rdb,
		[]string{reservationKey(token), pendingIndexKey},
		counterKeyPrefix, token, mode,
	).Slice()
	if err != nil {
		return fmt.Errorf("%s script: %w", mode, err)
	}
	if ok, code, _ := parseScriptReply(reply); !ok {
		if code == "NOT_FOUND" {
			return ErrUnknownReservation
		}
		return fmt.Errorf("%s rejected: %s", mode, code)
	}
	return nil
}

// Commit moves the token's reserved units to sold.
func (l *RedisLedger) Commit(ctx context.Context, token string) error {
	return l.finish(ctx, token, "commit")
}

// Release moves the token's reserved units back to available.
func (l *RedisLedger) Release(ctx context.Context, token string) error {
	return l.finish(ctx, token, "release")
}

// Refund permanently retires sold units.
func (l *RedisLedger) Refund(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return &domain.InvalidInputError{Field: "quantity", Reason: "must be positive"}
	}
	reply, err := refundScript.Run(ctx, l.rdb,
		[]string{counterKey(ticketTypeID)}, quantity,
	).Slice()
	if err != nil {
		return fmt.Errorf("refund script: %w", err)
	}
	if ok, code, _ := parseScriptReply(reply); !ok {
		switch code {
		case "UNKNOWN_TYPE":
			return ErrUnknownTicketType
		case "EXCEEDS_SOLD":
			return &domain.InvalidInputError{Field: "quantity", Reason: "exceeds sold units"}
		default:
			return fmt.Errorf("refund rejected: %s", code)
		}
	}
	return nil
}

// Snapshot returns the current counters for a ticket type.
func (l *RedisLedger) Snapshot(ctx context.Context, ticketTypeID string) (Snapshot, error) {
	fields, err := l.rdb.HGetAll(ctx, counterKey(ticketTypeID)).Result()
	if err != nil {
		return Snapshot{}, err
	}
	if len(fields) == 0 {
		return Snapshot{}, ErrUnknownTicketType
	}
	atoi := func(k string) int {
		v, _ := strconv.Atoi(fields[k])
		return v
	}
	return Snapshot{
		TicketTypeID: ticketTypeID,
		Capacity:     atoi("capacity"),
		Available:    atoi("available"),
		Reserved:     atoi("reserved"),
		Sold:         atoi("sold"),
		Refunded:     atoi("refunded"),
	}, nil
}

// Expired lists reservations at or past their deadline via the pending
// index.
func (l *RedisLedger) Expired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error) {
	opt := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.Unix(), 10)}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	tokens, err := l.rdb.ZRangeByScore(ctx, pendingIndexKey, opt).Result()
	if err != nil {
		return nil, err
	}

	reservations := make([]*Reservation, 0, len(tokens))
	for _, token := range tokens {
		fields, err := l.rdb.HGetAll(ctx, reservationKey(token)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			// Reservation hash already gone; drop the stale index entry.
			l.rdb.ZRem(ctx, pendingIndexKey, token)
			continue
		}
		quantity, _ := strconv.Atoi(fields["quantity"])
		createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
		expiresAt, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
		reservations = append(reservations, &Reservation{
			Token:        token,
			TicketTypeID: fields["ticket_type_id"],
			Quantity:     quantity,
			CreatedAt:    time.Unix(createdAt, 0).UTC(),
			ExpiresAt:    time.Unix(expiresAt, 0).UTC(),
		})
	}
	return reservations, nil
}

// parseScriptReply unpacks the {ok, ...} convention used by the scripts.
func parseScriptReply(reply []interface{}) (ok bool, code, detail string) {
	if len(reply) == 0 {
		return false, "EMPTY_REPLY", ""
	}
	status, _ := reply[0].(int64)
	if status == 1 {
		return true, "", ""
	}
	if len(reply) > 1 {
		code, _ = reply[1].(string)
	}
	if len(reply) > 2 {
		detail, _ = reply[2].(string)
	}
	return false, code, detail
}
