package pool

import (
	"sync/atomic"

	"github.com/kpeterse/crew/internal/work"
)

// TokenGenerator issues strictly increasing correlation tokens, unique for
// the lifetime of one pool instance. The monotonic counter is what
// guarantees a token is never reused while still pending.
type TokenGenerator struct {
	n atomic.Uint64
}

// Next returns the next token.
func (g *TokenGenerator) Next() work.Token {
	return work.Token(g.n.Add(1))
}
