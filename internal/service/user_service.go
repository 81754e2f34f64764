package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"user-directory/internal/domain"
	"user-directory/internal/repository"
)

// TokenIssuer es lo que el flujo de credenciales necesita del JWTService.
type TokenIssuer interface {
	Issue(subject string, now time.Time) (Token, error)
}

// UserService coordina reglas de negocio para usuarios: registro, login y
// el CRUD del directorio.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	guard  RegistrationGuard
	now    func() time.Time

	dummyMu     sync.Mutex
	dummyDigest string
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, guard RegistrationGuard) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewMemoryRegistrationGuard()
	}
	return &UserService{
		logger: logger,
		users:  users,
		hasher: hasher,
		tokens: tokens,
		guard:  guard,
		now:    time.Now,
	}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6"`
	Age      *int   `json:"age" validate:"omitempty,min=18,max=120"`
}

// CreateUserInput comparte reglas con el registro.
type CreateUserInput = RegisterInput

type UpdateUserInput struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=50"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Age      *int    `json:"age" validate:"omitempty,min=18,max=120"`
	IsActive *bool   `json:"is_active"`
}

type ListParams struct {
	Page       int  `json:"page" validate:"min=1"`
	Limit      int  `json:"limit" validate:"min=1,max=100"`
	ActiveOnly bool `json:"active_only"`
}

const (
	DefaultPage       = 1
	DefaultLimit      = 10
	DefaultActiveOnly = true
)

const dummyPassword = "dummy-password-for-timing"

// Register crea el usuario y emite un token para su email.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, Token, error) {
	user, err := s.createUser(ctx, input)
	if err != nil {
		return domain.User{}, Token{}, err
	}

	token, err := s.tokens.Issue(user.Email, s.now())
	if err != nil {
		return domain.User{}, Token{}, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, token, nil
}

// Login no distingue email inexistente de contraseña incorrecta: ambos
// devuelven ErrInvalidCredentials tras un cálculo de hash comparable.
func (s *UserService) Login(ctx context.Context, email, password string) (Token, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return Token{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(ctx, password, s.dummyHash())
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, err
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		return Token{}, ErrInvalidCredentials
	}
	// Un usuario dado de baja no podría pasar el gate con el token.
	if !user.IsActive {
		return Token{}, ErrInvalidCredentials
	}
	return s.tokens.Issue(user.Email, s.now())
}

// CreateUser es el alta administrativa: mismas reglas que Register, sin token.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	user, err := s.createUser(ctx, input)
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *UserService) createUser(ctx context.Context, input RegisterInput) (domain.User, error) {
	input.Email = repository.NormalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return domain.User{}, err
	}

	release, err := s.guard.Acquire(ctx, input.Email)
	if err != nil {
		return domain.User{}, err
	}
	defer release()

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, err
	}

	digest, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.Create(ctx, domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: digest,
		Age:          input.Age,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

// ListUsers devuelve una página; ActiveOnly excluye bajas de items y total.
func (s *UserService) ListUsers(ctx context.Context, params ListParams) (domain.UserPage, error) {
	if err := validateStruct(params); err != nil {
		return domain.UserPage{}, err
	}
	offset := (params.Page - 1) * params.Limit
	items, total, err := s.users.List(ctx, offset, params.Limit, params.ActiveOnly)
	if err != nil {
		return domain.UserPage{}, err
	}
	return domain.UserPage{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetUser oculta los usuarios dados de baja.
func (s *UserService) GetUser(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, translateNotFound(err)
	}
	if !user.IsActive {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// UpdateUser aplica un patch parcial. Un email que ya pertenece a otro
// registro, activo o no, devuelve ErrEmailTaken.
func (s *UserService) UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (domain.User, error) {
	if input.Email != nil {
		normalized := repository.NormalizeEmail(*input.Email)
		input.Email = &normalized
	}
	if err := validateStruct(input); err != nil {
		return domain.User{}, err
	}

	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, translateNotFound(err)
	}

	patch := domain.UserPatch{
		Name:     input.Name,
		Email:    input.Email,
		Age:      input.Age,
		IsActive: input.IsActive,
	}
	if patch.Email != nil && *patch.Email != current.Email {
		other, err := s.users.GetByEmail(ctx, *patch.Email)
		if err == nil && other.ID != id {
			return domain.User{}, ErrEmailTaken
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, err
		}
	}

	updated, err := s.users.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, translateNotFound(err)
	}
	return updated, nil
}

// DeleteUser hace la baja lógica (is_active=false); nunca borra la fila.
func (s *UserService) DeleteUser(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.SoftDelete(ctx, id)
	if err != nil {
		return domain.User{}, translateNotFound(err)
	}
	s.logger.Info("user deactivated", zap.Int64("user_id", id))
	return user, nil
}

// dummyHash sirve para igualar la latencia del login con emails
// inexistentes. Se calcula fuera del ctx del request para que una cancelación
// no lo deje vacío; si falla se reintenta en el próximo login.
func (s *UserService) dummyHash() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyDigest != "" {
		return s.dummyDigest
	}
	digest, err := s.hasher.Hash(context.Background(), dummyPassword)
	if err != nil {
		s.logger.Warn("dummy hash failed", zap.Error(err))
		return ""
	}
	s.dummyDigest = digest
	return digest
}

func translateNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
