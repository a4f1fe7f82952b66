package yards

import (
	"math/rand"
	"sync"
)

// IdentityPool hands out the client signature (User-Agent) for the next
// request. Implementations must be safe for concurrent use.
type IdentityPool interface {
	Next() string
}

// DefaultIdentities is a fixed pool of current desktop and mobile browser
// signatures.
var DefaultIdentities = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36 Edg/128.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36 Edg/128.0.0.0",
	"Mozilla/5.0 (Android 14; Mobile; rv:130.0) Gecko/130.0 Firefox/130.0",
}

type randomPool struct {
	mu  sync.Mutex
	ids []string
	rng *rand.Rand
}

// NewRandomPool picks uniformly from ids on every call.
func NewRandomPool(ids []string, seed ...int64) IdentityPool {
	s := rand.Int63()
	if len(seed) > 0 {
		s = seed[0]
	}
	return &randomPool{ids: append([]string(nil), ids...), rng: rand.New(rand.NewSource(s))}
}

func (p *randomPool) Next() string {
	if len(p.ids) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids[p.rng.Intn(len(p.ids))]
}

type roundRobinPool struct {
	mu  sync.Mutex
	ids []string
	i   int
}

// NewRoundRobinPool cycles through ids in order.
func NewRoundRobinPool(ids []string) IdentityPool {
	return &roundRobinPool{ids: append([]string(nil), ids...)}
}

func (p *roundRobinPool) Next() string {
	if len(p.ids) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.ids[p.i%len(p.ids)]
	p.i++
	return id
}
