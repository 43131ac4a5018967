package hub

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/magland/hchat/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ protocol.Distributor   = (*Hub)(nil)
	_ protocol.AccessGranter = (*Hub)(nil)
)

func newTestHub(t *testing.T, buffer int) (*Hub, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))
	h, err := New(Config{
		SubscribeKey: "sub-c-test",
		SecretKey:    []byte("test-secret"),
		Buffer:       buffer,
		Clock:        clk,
	})
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, clk
}

func testMessage(text string) *protocol.PubsubMessage {
	return &protocol.PubsubMessage{Type: protocol.TypeMessage, MessageJSON: text}
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{SubscribeKey: "k"})
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestHubFanOut(t *testing.T) {
	h, _ := newTestHub(t, 0)
	ctx := context.Background()

	ab, err := h.Attach([]string{"b", "a", "a"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ab.Channels)
	onlyB, err := h.Attach([]string{"b"})
	require.NoError(t, err)

	require.NoError(t, h.Publish(ctx, "a", testMessage("1")))
	require.NoError(t, h.Publish(ctx, "b", testMessage("2")))
	require.NoError(t, h.Publish(ctx, "c", testMessage("3")))

	require.Equal(t, "1", (<-ab.C).Message.MessageJSON)
	ev := <-ab.C
	require.Equal(t, "b", ev.Channel)
	require.Equal(t, "2", ev.Message.MessageJSON)
	require.Equal(t, "2", (<-onlyB.C).Message.MessageJSON)
	require.Empty(t, ab.C)
	require.Empty(t, onlyB.C)

	subscribers, delivered, dropped := h.Stats()
	require.EqualValues(t, 2, subscribers)
	require.EqualValues(t, 3, delivered)
	require.Zero(t, dropped)

	ab.Close()
	ab.Close()
	_, ok := <-ab.C
	require.False(t, ok)
	subscribers, _, _ = h.Stats()
	require.EqualValues(t, 1, subscribers)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h, _ := newTestHub(t, 2)
	sub, err := h.Attach([]string{"a"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Publish(context.Background(), "a", testMessage("m")))
	}
	require.Len(t, sub.C, 2)
	_, delivered, dropped := h.Stats()
	require.EqualValues(t, 2, delivered)
	require.EqualValues(t, 3, dropped)
}

func TestHubClose(t *testing.T) {
	h, _ := newTestHub(t, 0)
	sub, err := h.Attach([]string{"a", "b"})
	require.NoError(t, err)

	h.Close()
	_, ok := <-sub.C
	require.False(t, ok)
	sub.Close()

	require.ErrorIs(t, h.Publish(context.Background(), "a", testMessage("x")), ErrClosed)
	_, err = h.Attach([]string{"a"})
	require.ErrorIs(t, err, ErrClosed)
}

func TestHubPublishHonorsContext(t *testing.T) {
	h, _ := newTestHub(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.Publish(ctx, "a", testMessage("x")), context.Canceled)
}

func TestReadCredentials(t *testing.T) {
	h, clk := newTestHub(t, 0)
	ctx := context.Background()

	credential, err := h.GrantReadCredential(ctx, []string{"a", "b"}, 60)
	require.NoError(t, err)

	claims, err := h.Authorize(credential, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, claims.Channels)
	require.Equal(t, "sub-c-test", claims.SubscribeKey)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, clk.Now().Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	_, err = h.Authorize(credential, []string{"b"})
	require.NoError(t, err)
	_, err = h.Authorize(credential, []string{"a", "c"})
	require.ErrorIs(t, err, ErrChannelNotGranted)

	other, err := h.GrantReadCredential(ctx, []string{"a", "b"}, 60)
	require.NoError(t, err)
	require.NotEqual(t, credential, other, "credentials carry a unique id")

	clk.Add(time.Hour + time.Second)
	_, err = h.Authorize(credential, []string{"a"})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestReadCredentialsRejectForgeries(t *testing.T) {
	h, clk := newTestHub(t, 0)

	foreign, err := New(Config{SubscribeKey: "sub-c-test", SecretKey: []byte("other"), Clock: clk})
	require.NoError(t, err)
	forged, err := foreign.GrantReadCredential(context.Background(), []string{"a"}, 60)
	require.NoError(t, err)
	_, err = h.Authorize(forged, []string{"a"})
	require.ErrorIs(t, err, ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Channels:     []string{"a"},
		SubscribeKey: "sub-c-test",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = h.Authorize(unsigned, []string{"a"})
	require.ErrorIs(t, err, ErrUnauthorized)

	otherKey, err := New(Config{SubscribeKey: "sub-c-other", SecretKey: []byte("test-secret"), Clock: clk})
	require.NoError(t, err)
	misdirected, err := otherKey.GrantReadCredential(context.Background(), []string{"a"}, 60)
	require.NoError(t, err)
	_, err = h.Authorize(misdirected, []string{"a"})
	require.ErrorIs(t, err, ErrSubscribeKeyMismatch)

	_, err = h.GrantReadCredential(context.Background(), nil, 60)
	require.Error(t, err)
	_, err = h.GrantReadCredential(context.Background(), []string{"a"}, 0)
	require.Error(t, err)
}

func TestDeriveSecretKey(t *testing.T) {
	a, err := DeriveSecretKey("operator-secret", "sub-c-one")
	require.NoError(t, err)
	b, err := DeriveSecretKey("operator-secret", "sub-c-one")
	require.NoError(t, err)
	c, err := DeriveSecretKey("operator-secret", "sub-c-two")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotContains(t, string(a), "operator-secret")

	_, err = DeriveSecretKey("", "sub-c-one")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
