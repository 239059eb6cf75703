package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier validates bearer tokens issued by the identity provider and
// extracts the requester id from the subject claim.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
	Now       func() time.Time
}

func (v Verifier) clock() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v Verifier) algorithm() jwa.SignatureAlgorithm {
	if v.Algorithm != "" {
		return v.Algorithm
	}
	return jwa.HS256
}

// ParseSubject validates the token and returns its subject.
func (v Verifier) ParseSubject(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", errors.New("identity: missing token")
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", fmt.Errorf("identity: invalid token: %w", err)
	}
	if algorithm != v.algorithm() {
		return "", fmt.Errorf("identity: unexpected token algorithm %s", algorithm)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.Secret))
	if err != nil {
		return "", fmt.Errorf("identity: invalid token: %w", err)
	}
	if err := v.validate(parsed); err != nil {
		return "", fmt.Errorf("identity: invalid token: %w", err)
	}
	subject := parsed.Subject()
	if subject == "" {
		return "", errors.New("identity: token missing subject")
	}
	return subject, nil
}

func (v Verifier) validate(tok jwt.Token) error {
	now := v.clock()
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

// Sign mints a token for the subject. Production tokens come from the
// identity provider; this exists for tooling and tests.
func (v Verifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := v.clock()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if v.Issuer != "" {
		builder = builder.Issuer(v.Issuer)
	}
	if v.Audience != "" {
		builder = builder.Audience([]string{v.Audience})
	}
	token, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(v.algorithm(), v.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("identity: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("identity: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("identity: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("identity: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("identity: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
