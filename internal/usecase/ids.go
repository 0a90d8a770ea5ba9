package usecase

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator mints identifiers of the form "<prefix>_<unique>".
type IDGenerator interface {
	NewID(prefix string) string
}

type ulidGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator returns a generator producing lexically sortable ids,
// monotonic within the same millisecond.
func NewULIDGenerator() IDGenerator {
	return &ulidGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGenerator) NewID(prefix string) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()
	return prefix + "_" + id.String()
}
