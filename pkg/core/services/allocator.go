package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

const (
	DefaultCodeLength  = 7
	minGeneratedLength = 4
	maxGeneratedLength = 12
	allocationAttempts = 5
)

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// Custom codes that would shadow a route.
var reservedCodes = map[string]struct{}{
	"api":       {},
	"all":       {},
	"analytics": {},
	"tag":       {},
	"shorten":   {},
	"short":     {},
	"healthz":   {},
	"health":    {},
	"static":    {},
}

// ValidateCustomCode checks a user-supplied code.
func ValidateCustomCode(code string) error {
	if !customCodeRe.MatchString(code) {
		return fmt.Errorf("%w: custom code must be 3-20 characters of [A-Za-z0-9_-]", domain.ErrValidation)
	}
	if _, reserved := reservedCodes[strings.ToLower(code)]; reserved {
		return fmt.Errorf("%w: custom code %q is reserved", domain.ErrValidation, code)
	}
	return nil
}

// CodeAllocator hands out reservations in the registry's namespace.
type CodeAllocator struct {
	registry *LinkRegistry
	gen      ports.CodeGenerator
	attempts int
}

func NewCodeAllocator(registry *LinkRegistry, gen ports.CodeGenerator) *CodeAllocator {
	if gen == nil {
		gen = NewRandomCodeGenerator(DefaultCodeLength)
	}
	return &CodeAllocator{registry: registry, gen: gen, attempts: allocationAttempts}
}

// Allocate reserves custom if given, otherwise a generated code. A taken
// custom code is a conflict; the caller decides whether to retry.
func (a *CodeAllocator) Allocate(ctx context.Context, custom string) (*Reservation, error) {
	if custom != "" {
		if err := ValidateCustomCode(custom); err != nil {
			return nil, err
		}
		return a.registry.Reserve(custom)
	}

	for i := 0; i < a.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := a.gen.NewCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: generate code: %v", domain.ErrInternal, err)
		}
		res, err := a.registry.Reserve(code)
		if err == nil {
			return res, nil
		}
		if !domain.IsConflict(err) {
			return nil, err
		}
	}
	return nil, domain.ErrAllocationExhausted
}

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCodeGenerator draws base62 codes from crypto/rand.
type RandomCodeGenerator struct {
	length int
}

// NewRandomCodeGenerator clamps length into the generated-code range (4-12).
func NewRandomCodeGenerator(length int) *RandomCodeGenerator {
	switch {
	case length <= 0:
		length = DefaultCodeLength
	case length < minGeneratedLength:
		length = minGeneratedLength
	case length > maxGeneratedLength:
		length = maxGeneratedLength
	}
	return &RandomCodeGenerator{length: length}
}

func (g *RandomCodeGenerator) NewCode(_ context.Context) (string, error) {
	return generateShortCode(g.length)
}

func generateShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

var _ ports.CodeGenerator = (*RandomCodeGenerator)(nil)
