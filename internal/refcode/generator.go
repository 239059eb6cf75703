package refcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/noah-isme/backend-travio/internal/vertical"
)

// ErrExhausted is returned when the generator runs out of probe attempts.
// It is a transient system fault: the caller may retry the settlement once,
// never fall back to a lower-quality code.
var ErrExhausted = errors.New("refcode: generation attempts exhausted")

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const alphanum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Format describes the shape of a booking reference for one vertical.
type Format struct {
	Prefix  string
	Letters int
	Digits  int
	// Alphanum overrides the letters+digits shape with a flat alphanumeric
	// code of the given length (airline PNR style).
	Alphanum int
}

var formats = map[vertical.Vertical]Format{
	vertical.Hotel:         {Letters: 3, Digits: 5},
	vertical.Entertainment: {Prefix: "ENT-", Letters: 3, Digits: 3},
	vertical.Flight:        {Alphanum: 6},
	vertical.Transport:     {Prefix: "TRN-", Letters: 3, Digits: 3},
}

// FormatFor returns the reference-code format for the vertical.
func FormatFor(v vertical.Vertical) (Format, bool) {
	f, ok := formats[v]
	return f, ok
}

// Store is the read side used to probe candidate codes. The existence check
// is an optimisation only: the uniqueness constraint at the storage layer is
// the authoritative guard, and the insert path retries on conflict.
type Store interface {
	ReferenceCodeExists(ctx context.Context, code string) (bool, error)
}

// Generator mints branded, human-readable booking references.
type Generator struct {
	Store       Store
	MaxAttempts int
}

// New returns a candidate code matching the format without probing storage.
func New(f Format) (string, error) {
	var b strings.Builder
	b.WriteString(f.Prefix)
	if f.Alphanum > 0 {
		for i := 0; i < f.Alphanum; i++ {
			c, err := pick(alphanum)
			if err != nil {
				return "", err
			}
			b.WriteByte(c)
		}
		return b.String(), nil
	}
	for i := 0; i < f.Letters; i++ {
		c, err := pick(letters)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	for i := 0; i < f.Digits; i++ {
		c, err := pick("0123456789")
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// Mint produces a code that is not currently present in the store, retrying
// up to the bounded attempt budget.
func (g Generator) Mint(ctx context.Context, v vertical.Vertical) (string, error) {
	f, ok := FormatFor(v)
	if !ok {
		return "", fmt.Errorf("refcode: no format for vertical %q", v)
	}
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = 8
	}
	for i := 0; i < attempts; i++ {
		code, err := New(f)
		if err != nil {
			return "", err
		}
		if g.Store == nil {
			return code, nil
		}
		exists, err := g.Store.ReferenceCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrExhausted
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
