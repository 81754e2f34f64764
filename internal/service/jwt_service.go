package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer     = "user-directory"
	accessTokenType = "access"
	// TokenTypeBearer es el token_type devuelto a los clientes.
	TokenTypeBearer = "bearer"
)

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

// JWTService emite y valida access tokens firmados con HMAC.
// Secreto, algoritmo y TTL se fijan al construirlo.
type JWTService struct {
	secret    []byte
	method    jwt.SigningMethod
	accessTTL time.Duration
	issuer    string
}

// Token es un access token emitido.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiresIn devuelve la vigencia en segundos respecto de IssuedAt.
func (t Token) ExpiresIn() int64 {
	return int64(t.ExpiresAt.Sub(t.IssuedAt).Seconds())
}

type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// NewJWTService admite HS256, HS384 y HS512.
func NewJWTService(secret, algorithm string, accessTTL time.Duration) (*JWTService, error) {
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	return &JWTService{
		secret:    []byte(secret),
		method:    method,
		accessTTL: accessTTL,
		issuer:    tokenIssuer,
	}, nil
}

// AccessTTL devuelve la vigencia configurada.
func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Issue firma un token con sub=subject, iat=now y exp=now+ttl redondeado al
// segundo siguiente.
func (s *JWTService) Issue(subject string, now time.Time) (Token, error) {
	if len(s.secret) == 0 {
		return Token{}, ErrJWTInvalid
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Token{}, ErrJWTInvalid
	}

	// exp viaja con precisión de segundos: se redondea hacia arriba para que
	// la vigencia nunca sea menor que ttl. El Token devuelto refleja lo firmado.
	issuedAt := now.UTC()
	expiresAt := ceilToPrecision(issuedAt.Add(s.accessTTL))
	claims := Claims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify comprueba firma y luego expiración (now < exp) y devuelve el subject.
func (s *JWTService) Verify(tokenString string, now time.Time) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString, now)
	if err != nil {
		return "", err
	}
	if claims.TokenType != accessTokenType {
		return "", ErrJWTInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrJWTInvalid
	}
	return claims.Subject, nil
}

func (s *JWTService) parseToken(tokenString string, now time.Time) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	// jwt/v5 valida la firma antes que los claims: un token manipulado
	// nunca llega a reportar ErrJWTExpired.
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func ceilToPrecision(t time.Time) time.Time {
	truncated := t.Truncate(jwt.TimePrecision)
	if truncated.Before(t) {
		return truncated.Add(jwt.TimePrecision)
	}
	return truncated
}
