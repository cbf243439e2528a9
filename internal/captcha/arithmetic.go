package captcha

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// ArithmeticID is the id of the built-in arithmetic provider.
const ArithmeticID = "arithmetic"

const (
	FieldChallengeID = "captcha_id"
	FieldAnswer      = "captcha_answer"

	arithmeticKeyPrefix = "captcha:arithmetic:"
)

// ArithmeticProvider asks a small addition and keeps the answer in the cache.
// Each challenge can be answered once.
type ArithmeticProvider struct {
	cache repository.CacheRepository
	ttl   time.Duration
	log   *zap.Logger
	// operand returns a number in [1, 9]
	operand func() int
}

func NewArithmeticProvider(cache repository.CacheRepository, ttl time.Duration, log *zap.Logger) *ArithmeticProvider {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ArithmeticProvider{
		cache:   cache,
		ttl:     ttl,
		log:     log,
		operand: func() int { return rand.IntN(9) + 1 },
	}
}

func (p *ArithmeticProvider) ID() string { return ArithmeticID }

func (p *ArithmeticProvider) RegisterCaptcha(context.Context) *Registration {
	return &Registration{
		Name:     "Simple arithmetic question",
		Render:   p.render,
		Validate: p.validate,
	}
}

func (p *ArithmeticProvider) render(ctx context.Context, module string) (string, error) {
	a, b := p.operand(), p.operand()
	challengeID := uuid.NewString()

	if err := p.cache.Set(ctx, arithmeticKeyPrefix+challengeID, strconv.Itoa(a+b), p.ttl); err != nil {
		return "", fmt.Errorf("failed to store captcha challenge: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<div class="captcha captcha-arithmetic" data-module="%s">`, html.EscapeString(module))
	fmt.Fprintf(&sb, `<label for="%s">How much is %d + %d?</label>`, FieldAnswer, a, b)
	fmt.Fprintf(&sb, `<input type="hidden" name="%s" value="%s">`, FieldChallengeID, challengeID)
	fmt.Fprintf(&sb, `<input type="text" name="%s" id="%s" inputmode="numeric" autocomplete="off" required>`, FieldAnswer, FieldAnswer)
	sb.WriteString(`</div>`)
	return sb.String(), nil
}

func (p *ArithmeticProvider) validate(ctx context.Context, req Request) Outcome {
	challengeID := strings.TrimSpace(req.Values[FieldChallengeID])
	answer := strings.TrimSpace(req.Values[FieldAnswer])
	if challengeID == "" || answer == "" {
		return Fail()
	}

	expected, err := p.cache.GetDel(ctx, arithmeticKeyPrefix+challengeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return FailWithMessage("The security question has expired, please try again.")
		}
		p.log.Error("failed to load captcha challenge", zap.Error(err))
		return Fail()
	}

	if answer != expected {
		return FailWithMessage("Wrong answer to the security question.")
	}
	return Pass()
}
