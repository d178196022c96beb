// Package secure keeps decrypted secret payloads in encrypted memory
// enclaves for the window between decryption and upload, so plaintext
// never sits in ordinary heap memory longer than a single remote call.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Payload wraps a decrypted secret value in a memguard enclave. The
// enclave encrypts the bytes at rest in memory and mlocks them against
// swapping where the platform allows it.
type Payload struct {
	enclave   *memguard.Enclave
	mu        sync.Mutex
	destroyed bool
}

// NewPayload seals the given bytes into a protected enclave. The input
// slice is consumed by memguard and must not be reused by the caller.
func NewPayload(data []byte) *Payload {
	return &Payload{enclave: memguard.NewEnclave(data)}
}

// Use decrypts the enclave, passes the plaintext to fn, and wipes the
// unlocked copy before returning. The slice handed to fn is only valid
// for the duration of the call.
func (p *Payload) Use(fn func(plaintext []byte) error) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return fn(nil)
	}
	enclave := p.enclave
	p.mu.Unlock()

	locked, err := enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// Destroy marks the payload as unusable. Idempotent. The encrypted
// enclave contents are left to the garbage collector; for full cleanup
// at process exit call memguard.Purge from main.
func (p *Payload) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.enclave = nil
	p.destroyed = true
}
