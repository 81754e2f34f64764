package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-directory/internal/domain"
	"user-directory/internal/repository"
)

const defaultLookupTimeout = 5 * time.Second

// TokenVerifier es lo que el gate necesita del JWTService.
type TokenVerifier interface {
	Verify(token string, now time.Time) (string, error)
}

// AuthGate resuelve el principal de un request a partir del header
// Authorization. No conoce la operación que sigue: sólo autentica.
type AuthGate struct {
	logger *zap.Logger
	tokens TokenVerifier
	users  repository.UserRepository
	now    func() time.Time
	group  singleflight.Group

	lookupTimeout time.Duration
}

func NewAuthGate(logger *zap.Logger, tokens TokenVerifier, users repository.UserRepository) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{
		logger: logger,
		tokens: tokens,
		users:  users,
		now:    time.Now,

		lookupTimeout: defaultLookupTimeout,
	}
}

// Authenticate devuelve ErrUnauthorized ante header ausente o mal formado,
// token inválido o vencido, o usuario inexistente o dado de baja. Los errores
// del store se devuelven tal cual.
func (g *AuthGate) Authenticate(ctx context.Context, header string) (domain.User, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return domain.User{}, ErrUnauthorized
	}

	subject, err := g.tokens.Verify(raw, g.now())
	if err != nil {
		g.logger.Debug("token rejected", zap.Error(err))
		return domain.User{}, ErrUnauthorized
	}

	user, err := g.lookup(ctx, repository.NormalizeEmail(subject))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// lookup comparte la consulta entre requests concurrentes del mismo subject.
// La consulta compartida no hereda la cancelación de quien la inició; cada
// llamador deja de esperar sólo cuando se cancela su propio ctx.
func (g *AuthGate) lookup(ctx context.Context, email string) (domain.User, error) {
	ch := g.group.DoChan(email, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.lookupTimeout)
		defer cancel()
		return g.users.GetByEmail(lookupCtx, email)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.User{}, res.Err
		}
		return res.Val.(domain.User), nil
	case <-ctx.Done():
		return domain.User{}, ctx.Err()
	}
}

// bearerToken extrae el token de "Bearer <token>". El esquema no distingue
// mayúsculas; se exige exactamente un token.
func bearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
		return "", false
	}
	return fields[1], true
}
