// Package useragent rotates User-Agent strings for outbound requests
// (§4.3): a static pool, uniform random selection, no adaptive state.
package useragent

import "math/rand"

// defaultPool is the built-in set of agent strings a Rotator uses when
// constructed with no explicit pool.
var defaultPool = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.7; rv:134.0) Gecko/20100101 Firefox/134.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_3) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:134.0) Gecko/20100101 Firefox/134.0",
	"Mozilla/5.0 (X11; Linux i686; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (X11; Fedora; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_7 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/133.0.6943.33 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 17_7_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 10; Pixel 3 XL) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.6834.164 Mobile Safari/537.36 EdgA/131.0.2903.87",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/131.0.2903.86",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
}

// Rotator holds an immutable pool of User-Agent strings.
type Rotator struct {
	pool []string
}

// New builds a Rotator from pool. A nil pool (not configured at all)
// falls back to a built-in default pool; an explicitly empty, non-nil
// pool is kept as-is, so Random then returns "" (§4.3: "returns null
// when the list is empty").
func New(pool []string) *Rotator {
	if pool == nil {
		pool = defaultPool
	}
	cp := make([]string, len(pool))
	copy(cp, pool)
	return &Rotator{pool: cp}
}

// Random returns a uniformly-selected User-Agent string from the pool,
// or "" if the pool is empty.
func (r *Rotator) Random() string {
	if len(r.pool) == 0 {
		return ""
	}
	return r.pool[rand.Intn(len(r.pool))]
}
