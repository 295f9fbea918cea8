package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/clicktrail/internal/apperror"
)

// ScopeExport is the only scope issued today: one CSV download.
const ScopeExport = "export"

// DefaultTicketTTL bounds how long a shared export link stays usable.
const DefaultTicketTTL = 10 * time.Minute

const ticketIssuer = "clicktrail"

// TicketService issues and checks short-lived signed tickets.
//
// A ticket lets an admin hand out an export URL (for a spreadsheet import, a
// colleague) without revealing the admin token itself. Tickets are HS256 JWTs
// keyed by HMAC-SHA256 of the admin secret, so rotating ADMIN_TOKEN revokes
// every outstanding ticket.
type TicketService struct {
	key []byte
	now func() time.Time
}

// NewTicketService derives the signing key from secret.
func NewTicketService(secret []byte) (*TicketService, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: ticket secret must not be empty")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("clicktrail export ticket v1"))
	return &TicketService{key: mac.Sum(nil), now: time.Now}, nil
}

type ticketClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issue signs a ticket for scope valid for ttl. It returns the ticket and
// its expiry.
func (s *TicketService) Issue(scope string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	now := s.now()
	exp := now.Add(ttl)

	c := ticketClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ticketIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing ticket: %w", err)
	}
	return signed, exp, nil
}

// Validate checks signature, issuer, expiry and scope. Any failure wraps
// apperror.ErrUnauthorized.
//
// jwt.WithValidMethods pins HS256 so a token claiming "none" or an
// asymmetric algorithm is rejected before the key is used.
func (s *TicketService) Validate(ticket, scope string) error {
	token, err := jwt.ParseWithClaims(
		ticket,
		&ticketClaims{},
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(ticketIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperror.Unauthorized("ticket expired")
		}
		return apperror.Unauthorized("invalid ticket")
	}

	c, ok := token.Claims.(*ticketClaims)
	if !ok || !token.Valid {
		return apperror.Unauthorized("invalid ticket")
	}
	if c.Scope != scope {
		return apperror.Unauthorized("ticket not valid for this resource")
	}
	return nil
}
