// Package catalog holds the quotations a broadcaster can send.
//
// A Catalog is validated once at construction and never changes
// afterwards, so it can be shared by concurrent readers. Pick is the only
// operation that touches mutable state (the entropy source).
package catalog

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	ErrEmpty        = errors.New("catalog is empty")
	ErrInvalidQuote = errors.New("invalid quote")
)

// Quote is one catalog entry. The source field for Text is "quote".
type Quote struct {
	Author string `json:"author" yaml:"author"`
	Text   string `json:"quote" yaml:"quote"`
}

func (q Quote) validate() error {
	if strings.TrimSpace(q.Author) == "" {
		return errors.New("author is empty")
	}
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("quote is empty")
	}
	if !utf8.ValidString(q.Author) {
		return errors.New("author is not valid UTF-8")
	}
	if !utf8.ValidString(q.Text) {
		return errors.New("quote is not valid UTF-8")
	}
	return nil
}

type Catalog struct {
	quotes []Quote

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

type Option func(*Catalog)

// WithRand replaces the default entropy source.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) { c.rng = r }
}

// New validates quotes and returns an immutable catalog holding a copy.
func New(quotes []Quote, opts ...Option) (*Catalog, error) {
	if len(quotes) == 0 {
		return nil, ErrEmpty
	}
	for i, q := range quotes {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidQuote, i, err)
		}
	}
	c := &Catalog{quotes: append([]Quote(nil), quotes...)}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.quotes) }

// Quotes returns a copy of the catalog contents in load order.
func (c *Catalog) Quotes() []Quote { return append([]Quote(nil), c.quotes...) }

// Pick returns a uniformly random quote.
func (c *Catalog) Pick() Quote {
	return c.quotes[c.index()]
}

func (c *Catalog) index() int {
	n := len(c.quotes)
	if c.rng == nil {
		return rand.IntN(n)
	}
	c.mu.Lock()
	i := c.rng.IntN(n)
	c.mu.Unlock()
	return i
}
