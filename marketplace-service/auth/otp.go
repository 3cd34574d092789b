package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCode     = errors.New("invalid or expired code")
	ErrTooManyAttempts = errors.New("too many attempts, request a new code")
)

const maxOTPAttempts = 5

// OTP issues six-digit login codes. Only a bcrypt hash of the code is kept,
// and a code is burned after maxOTPAttempts wrong guesses.
type OTP struct {
	rdb     *redis.Client
	ttl     time.Duration
	compare func(hash, code []byte) error
}

func NewOTP(rdb *redis.Client, ttl time.Duration) *OTP {
	return &OTP{rdb: rdb, ttl: ttl, compare: bcrypt.CompareHashAndPassword}
}

func otpKey(email string) string {
	return fmt.Sprintf("otp:%s", strings.ToLower(email))
}

func (o *OTP) Issue(ctx context.Context, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	key := otpKey(email)
	_, err = o.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", string(hash), "attempts", 0)
		pipe.Expire(ctx, key, o.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// reserveAttempt counts a guess before it is checked and returns the stored
// hash with the new attempt count. Nil when no code is pending.
var reserveAttempt = redis.NewScript(`
local hash = redis.call('HGET', KEYS[1], 'hash')
if not hash then
	return false
end
local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
return {hash, n}
`)

// Verify checks code against the pending one for email. Every guess is
// counted before the comparison, so concurrent guesses cannot exceed
// maxOTPAttempts, and a matching code is consumed by exactly one caller.
func (o *OTP) Verify(ctx context.Context, email, code string) error {
	key := otpKey(email)
	res, err := reserveAttempt.Run(ctx, o.rdb, []string{key}).Slice()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("record attempt: unexpected reply %v", res)
	}
	hash, _ := res[0].(string)
	attempts, _ := res[1].(int64)

	if attempts > maxOTPAttempts {
		return o.burn(ctx, key)
	}
	if o.compare([]byte(hash), []byte(code)) != nil {
		if attempts >= maxOTPAttempts {
			return o.burn(ctx, key)
		}
		return ErrInvalidCode
	}

	n, err := o.rdb.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if n == 0 {
		return ErrInvalidCode
	}
	return nil
}

func (o *OTP) burn(ctx context.Context, key string) error {
	if err := o.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("burn code: %w", err)
	}
	return ErrTooManyAttempts
}
