package testutil

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// Clock is a manual time source. Pass Clock.Now as the trial's clock and
// advance it with Tick to make timer-gated transitions legal.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Tick advances the clock by d.
func (c *Clock) Tick(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Set moves the clock to an absolute time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// TestConfigOption customizes a test trial configuration.
type TestConfigOption func(*protocol.TrialConfig)

// WithPhaseDuration sets the fixed phase duration.
func WithPhaseDuration(d time.Duration) TestConfigOption {
	return func(cfg *protocol.TrialConfig) {
		cfg.PhaseDuration = d
	}
}

// WithDesignatedWeek sets the week batched into the decryption request.
func WithDesignatedWeek(week int) TestConfigOption {
	return func(cfg *protocol.TrialConfig) {
		cfg.DesignatedWeek = week
	}
}

// WithMinOracleSignatures sets the callback signature quorum.
func WithMinOracleSignatures(n int) TestConfigOption {
	return func(cfg *protocol.TrialConfig) {
		cfg.MinOracleSignatures = n
	}
}

// WithSignificanceThreshold sets the minimum significant difference
// between group averages.
func WithSignificanceThreshold(threshold uint64) TestConfigOption {
	return func(cfg *protocol.TrialConfig) {
		cfg.SignificanceThreshold = threshold
	}
}

// NewTestConfig creates a trial configuration for testing: one-hour
// phases so a manual clock can step through them, defaults otherwise.
func NewTestConfig(options ...TestConfigOption) *protocol.TrialConfig {
	cfg := protocol.DefaultTrialConfig()
	cfg.PhaseDuration = time.Hour

	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// GenerateRandomBytes generates cryptographically secure random bytes.
func GenerateRandomBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	return bytes, err
}

// GenerateTestKeyPair generates an Ed25519 key pair for testing.
func GenerateTestKeyPair() (crypto.PublicKey, crypto.PrivateKey, error) {
	return crypto.GenerateKeyPair()
}

// GenerateTestPublicKeys generates multiple public keys for testing.
func GenerateTestPublicKeys(count int) ([]crypto.PublicKey, error) {
	keys := make([]crypto.PublicKey, count)
	for i := 0; i < count; i++ {
		pub, _, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		keys[i] = pub
	}
	return keys, nil
}

// RandomHandle creates a random opaque handle of the given width.
func RandomHandle(w crypto.Width) (crypto.Handle, error) {
	id, err := crypto.RandomHandleID()
	if err != nil {
		return crypto.Handle{}, err
	}
	return crypto.Handle{ID: id, Width: w}, nil
}
