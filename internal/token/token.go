package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/iurnickita/paymi/internal/token/config"
)

// Short-lived signed tokens binding a payment link to one invoice id.
// The pay endpoint accepts nothing else.

var ErrInvalidToken = errors.New("invalid invoice token")

const defaultTTL = 24 * time.Hour

type Issuer interface {
	Issue(invoiceID int64) (string, error)
	Verify(tokenString string) (int64, error)
}

type claims struct {
	jwt.RegisteredClaims
	InvoiceID int64 `json:"inv"`
}

type issuer struct {
	cfg config.Config
}

func NewIssuer(cfg config.Config) Issuer {
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	return &issuer{cfg: cfg}
}

func (i *issuer) Issue(invoiceID int64) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
		InvoiceID: invoiceID,
	})
	return t.SignedString([]byte(i.cfg.Secret))
}

func (i *issuer) Verify(tokenString string) (int64, error) {
	var parsed claims
	t, err := jwt.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(i.cfg.Secret), nil
	})
	if err != nil || !t.Valid {
		return 0, ErrInvalidToken
	}
	return parsed.InvoiceID, nil
}
