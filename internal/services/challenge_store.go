package services

import (
	"sync"
	"time"

	"github.com/bluefin-labs/enterprise-api/internal/metrics"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// ChallengeLength is the number of random bytes in a WebAuthn challenge.
const ChallengeLength = 32

type storedChallenge struct {
	challenge []byte
	expiresAt time.Time
}

// ChallengeStore holds single-use WebAuthn challenges in memory, keyed
// by ceremony (username for identified flows, the challenge itself for
// usernameless authentication). Entries expire after the configured TTL;
// expired entries are dropped lazily on read and swept by ClearExpired.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]storedChallenge
	ttl        time.Duration
}

func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{
		challenges: make(map[string]storedChallenge),
		ttl:        ttl,
	}
}

// GenerateChallenge returns a fresh cryptographically random challenge.
func (s *ChallengeStore) GenerateChallenge() []byte {
	return utils.RandomBytes(ChallengeLength)
}

// StoreChallenge saves a challenge under key, replacing any pending
// challenge for the same key.
func (s *ChallengeStore) StoreChallenge(key string, challenge []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[key] = storedChallenge{
		challenge: challenge,
		expiresAt: time.Now().Add(s.ttl),
	}
	metrics.ActiveChallenges.Set(float64(len(s.challenges)))
}

// GetChallenge returns the pending challenge for key, or nil if there
// is none or it has expired.
func (s *ChallengeStore) GetChallenge(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.challenges[key]
	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.challenges, key)
		metrics.ActiveChallenges.Set(float64(len(s.challenges)))
		return nil
	}
	return entry.challenge
}

// ClearChallenge removes the pending challenge for key.
func (s *ChallengeStore) ClearChallenge(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, key)
	metrics.ActiveChallenges.Set(float64(len(s.challenges)))
}

// ClearExpired sweeps expired challenges. Run periodically so abandoned
// ceremonies do not accumulate.
func (s *ChallengeStore) ClearExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for key, entry := range s.challenges {
		if now.After(entry.expiresAt) {
			delete(s.challenges, key)
			removed++
		}
	}
	metrics.ActiveChallenges.Set(float64(len(s.challenges)))
	return removed
}

// Len reports the number of pending challenges.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}
