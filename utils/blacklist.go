package utils

import (
	"sync"
	"time"
)

// TokenBlacklist keeps logged-out tokens until their natural expiry.
type TokenBlacklist struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
	now    func() time.Time
}

func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (b *TokenBlacklist) Add(token string, expiresAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = expiresAt
}

func (b *TokenBlacklist) Contains(token string) bool {
	b.mu.RLock()
	expiry, exists := b.tokens[token]
	b.mu.RUnlock()
	if !exists {
		return false
	}
	if b.now().Before(expiry) {
		return true
	}
	// kadaluarsa, hapus
	b.mu.Lock()
	delete(b.tokens, token)
	b.mu.Unlock()
	return false
}

// Cleanup drops every expired entry and returns how many were removed.
func (b *TokenBlacklist) Cleanup() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	removed := 0
	for token, expiry := range b.tokens {
		if !now.Before(expiry) {
			delete(b.tokens, token)
			removed++
		}
	}
	return removed
}
