package service

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// TokenTimeLayout is the textual form of the reference timestamp mixed into a token.
const TokenTimeLayout = "2006-01-02 15:04:05"

// IdentitySpace tells which store a token belongs to.
type IdentitySpace int

const (
	SpaceGuest IdentitySpace = iota + 1
	SpaceCustomer
)

func (s IdentitySpace) String() string {
	switch s {
	case SpaceGuest:
		return "guest"
	case SpaceCustomer:
		return "customer"
	default:
		return "unknown"
	}
}

// TokenMatch is the pending identity a token resolved to.
type TokenMatch struct {
	Space IdentitySpace
	ID    uint
	Email string
}

// IssueToken derives the verification token for an email and its reference time.
// The same inputs always give the same token, so nothing is stored.
func IssueToken(salt, email string, ref time.Time) string {
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	// New256 only fails for keys longer than blake2b.Size
	h, _ := blake2b.New256(key)
	h.Write([]byte(email))
	h.Write([]byte(ref.UTC().Format(TokenTimeLayout)))
	return hex.EncodeToString(h.Sum(nil))
}

// SaltProvider returns the process-wide token salt.
type SaltProvider interface {
	SecretSalt(ctx context.Context) (string, error)
}

// TokenService issues tokens and resolves them back by scanning pending identities.
type TokenService struct {
	salts       SaltProvider
	subscribers repository.SubscriberRepository
	customers   repository.CustomerRepository
	batchSize   int
	log         *zap.Logger
}

func NewTokenService(
	salts SaltProvider,
	subscribers repository.SubscriberRepository,
	customers repository.CustomerRepository,
	batchSize int,
	log *zap.Logger,
) *TokenService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &TokenService{
		salts:       salts,
		subscribers: subscribers,
		customers:   customers,
		batchSize:   batchSize,
		log:         log,
	}
}

// Issue returns the token for email with the given reference time.
func (s *TokenService) Issue(ctx context.Context, email string, ref time.Time) (string, error) {
	salt, err := s.salts.SecretSalt(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load token salt: %w", err)
	}
	return IssueToken(salt, email, ref), nil
}

// Resolve looks the token up among pending guests first, then among
// unsubscribed accounts. It returns apperrors.ErrNotFound when nothing matches.
func (s *TokenService) Resolve(ctx context.Context, token string) (*TokenMatch, error) {
	match, err := s.ResolveIn(ctx, token, SpaceGuest)
	if err == nil {
		return match, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return s.ResolveIn(ctx, token, SpaceCustomer)
}

// ResolveIn scans a single identity space. When several rows match, the last one wins.
func (s *TokenService) ResolveIn(ctx context.Context, token string, space IdentitySpace) (*TokenMatch, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return nil, apperrors.ErrNotFound
	}

	salt, err := s.salts.SecretSalt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token salt: %w", err)
	}
	want := []byte(token)

	var match *TokenMatch
	matches := func(email string, ref time.Time) bool {
		return subtle.ConstantTimeCompare([]byte(IssueToken(salt, email, ref)), want) == 1
	}

	switch space {
	case SpaceGuest:
		err = s.subscribers.ScanPending(ctx, s.batchSize, func(batch []entity.NewsletterSubscriber) error {
			for _, sub := range batch {
				if matches(sub.Email, sub.SubscribedAt) {
					match = &TokenMatch{Space: SpaceGuest, ID: sub.ID, Email: sub.Email}
				}
			}
			return nil
		})
	case SpaceCustomer:
		err = s.customers.ScanPending(ctx, s.batchSize, func(batch []entity.Customer) error {
			for _, c := range batch {
				if matches(c.Email, c.CreatedAt) {
					match = &TokenMatch{Space: SpaceCustomer, ID: c.ID, Email: c.Email}
				}
			}
			return nil
		})
	default:
		return nil, fmt.Errorf("unknown identity space %d", space)
	}
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, apperrors.ErrNotFound
	}

	s.log.Debug("verification token resolved",
		zap.Stringer("space", match.Space),
		zap.Uint("id", match.ID))
	return match, nil
}
