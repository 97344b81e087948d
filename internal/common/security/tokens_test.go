package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, clock *fakeClock, opts ...TokenOption) *TokenService {
	t.Helper()
	opts = append([]TokenOption{WithClock(clock.Now)}, opts...)
	svc, err := NewTokenService([]byte("test-secret"), opts...)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_EmptySecret(t *testing.T) {
	_, err := NewTokenService(nil)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokenService_ConfirmLifetime(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)

	token, err := svc.IssueConfirm("alice@example.com")
	require.NoError(t, err)

	clock.t = clock.t.Add(DefaultTokenTTL - time.Second)
	payload, err := svc.Verify(token, PurposeConfirm)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", payload.Email)
	assert.NotEmpty(t, payload.ID)

	clock.t = clock.t.Add(2 * time.Second)
	payload, err = svc.Verify(token, PurposeConfirm)
	assert.ErrorIs(t, err, ErrTokenExpired)
	require.NotNil(t, payload)
	assert.Equal(t, "alice@example.com", payload.Email)
}

func TestTokenService_SubSecondIssueKeepsFullLifetime(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 600_000_000, time.UTC)
	clock := &fakeClock{t: issued}
	svc := newTestService(t, clock)

	token, err := svc.IssueReset(9)
	require.NoError(t, err)

	clock.t = issued.Add(DefaultTokenTTL - time.Nanosecond)
	payload, err := svc.Verify(token, PurposeReset)
	require.NoError(t, err)
	assert.False(t, payload.ExpiresAt.Before(issued.Add(DefaultTokenTTL)))

	clock.t = issued.Add(DefaultTokenTTL + time.Second)
	_, err = svc.Verify(token, PurposeReset)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_VerifyIsIdempotent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestService(t, clock)

	token, err := svc.IssueReset(42)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		payload, err := svc.Verify(token, PurposeReset)
		require.NoError(t, err)
		assert.Equal(t, int64(42), payload.UserID)
	}
}

func TestTokenService_Rejections(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestService(t, clock)

	confirm, err := svc.IssueConfirm("bob@example.com")
	require.NoError(t, err)

	other, err := NewTokenService([]byte("another-secret"), WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.IssueConfirm("bob@example.com")
	require.NoError(t, err)

	parts := strings.Split(confirm, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	cases := map[string]struct {
		token   string
		purpose TokenPurpose
	}{
		"malformed":     {token: "not-a-token", purpose: PurposeConfirm},
		"empty":         {token: "", purpose: PurposeConfirm},
		"tampered":      {token: tampered, purpose: PurposeConfirm},
		"wrong secret":  {token: foreign, purpose: PurposeConfirm},
		"wrong purpose": {token: confirm, purpose: PurposeReset},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			payload, err := svc.Verify(tc.token, tc.purpose)
			assert.ErrorIs(t, err, ErrTokenInvalid)
			assert.Nil(t, payload)
		})
	}
}

func TestTokenService_ForgedExpiredTokenIsInvalid(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	other, err := NewTokenService([]byte("attacker"), WithClock(clock.Now))
	require.NoError(t, err)
	forged, err := other.Issue(PurposeConfirm, TokenPayload{Email: "victim@example.com"}, -time.Minute)
	require.NoError(t, err)

	svc := newTestService(t, clock)
	payload, err := svc.Verify(forged, PurposeConfirm)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Nil(t, payload)
}

func TestTokenService_IssueUnknownPurpose(t *testing.T) {
	svc := newTestService(t, &fakeClock{t: time.Now()})
	_, err := svc.Issue("invite", TokenPayload{}, time.Minute)
	assert.ErrorIs(t, err, ErrUnknownPurpose)
}

func TestTokenService_ConsumeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clock := &fakeClock{t: time.Now()}
	svc := newTestService(t, clock, WithSpentStore(NewRedisSpentStore(rdb, "")))

	token, err := svc.IssueReset(7)
	require.NoError(t, err)
	payload, err := svc.Verify(token, PurposeReset)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Consume(ctx, payload))
	assert.ErrorIs(t, svc.Consume(ctx, payload), ErrTokenSpent)

	ttl := mr.TTL("ctf:token:spent:" + payload.ID)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, DefaultTokenTTL)
}

func TestTokenService_ConsumeWithoutStore(t *testing.T) {
	svc := newTestService(t, &fakeClock{t: time.Now()})
	payload := &TokenPayload{ID: "abc", ExpiresAt: time.Now().Add(time.Minute)}
	assert.NoError(t, svc.Consume(context.Background(), payload))
	assert.NoError(t, svc.Consume(context.Background(), payload))
}
