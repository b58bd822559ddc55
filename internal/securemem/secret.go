// Package securemem keeps provider credentials in memguard-locked buffers so
// they stay out of swap, core dumps and accidental log output.
package securemem

import (
	"sync"

	"github.com/awnumar/memguard"
)

const redacted = "[redacted]"

// Secret holds a credential in locked memory. The zero value and a nil
// pointer are both empty secrets.
type Secret struct {
	mu  sync.RWMutex
	buf *memguard.LockedBuffer
}

// New moves plaintext into locked memory.
func New(plaintext string) *Secret {
	if plaintext == "" {
		return &Secret{}
	}
	return &Secret{buf: memguard.NewBufferFromBytes([]byte(plaintext))}
}

// Reveal returns a plaintext copy. The copy lives in ordinary memory, so
// callers hand it straight to the SDK that needs it and drop it.
func (s *Secret) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil || !s.buf.IsAlive() {
		return ""
	}
	return string(s.buf.Bytes())
}

// IsEmpty reports whether no credential is held.
func (s *Secret) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf == nil || !s.buf.IsAlive() || s.buf.Size() == 0
}

// String never exposes the secret. It makes Secret safe to pass to loggers.
func (s *Secret) String() string {
	if s.IsEmpty() {
		return ""
	}
	return redacted
}

// Destroy wipes the credential. Further calls to Reveal return "".
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
}

var initOnce sync.Once

// Init installs memguard's interrupt handler, which wipes all locked buffers
// when the process receives SIGINT or SIGTERM. Call it once from main.
func Init() {
	initOnce.Do(memguard.CatchInterrupt)
}

// Purge wipes every locked buffer the process holds.
func Purge() {
	memguard.Purge()
}
