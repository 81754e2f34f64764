package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"user-directory/internal/domain"
)

// UserRecord es el mapeo gorm de la tabla users.
type UserRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"size:50;not null"`
	Email        string    `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `gorm:"size:255;not null"`
	Age          *int
	IsActive     bool      `gorm:"not null;default:true;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (UserRecord) TableName() string { return "users" }

func (r UserRecord) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Age:          r.Age,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// GormUserRepository implementa UserRepository sobre gorm (sqlite en local y tests).
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	now := time.Now().UTC()
	rec := UserRecord{
		Name:         user.Name,
		Email:        NormalizeEmail(user.Email),
		PasswordHash: user.PasswordHash,
		Age:          user.Age,
		IsActive:     user.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Select explícito: con default:true gorm omitiría is_active=false.
	err := r.db.WithContext(ctx).
		Select("Name", "Email", "PasswordHash", "Age", "IsActive", "CreatedAt", "UpdatedAt").
		Create(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *GormUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *GormUserRepository) first(ctx context.Context, cond string, arg any) (domain.User, error) {
	var rec UserRecord
	if err := r.db.WithContext(ctx).First(&rec, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *GormUserRepository) Update(ctx context.Context, id int64, patch domain.UserPatch) (domain.User, error) {
	var rec UserRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("select user: %w", err)
		}
		if patch.IsEmpty() {
			return nil
		}

		updates := map[string]any{"updated_at": time.Now().UTC()}
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Email != nil {
			updates["email"] = NormalizeEmail(*patch.Email)
		}
		if patch.Age != nil {
			updates["age"] = *patch.Age
		}
		if patch.IsActive != nil {
			updates["is_active"] = *patch.IsActive
		}
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("update user: %w", err)
		}
		return tx.First(&rec, "id = ?", id).Error
	})
	if err != nil {
		return domain.User{}, err
	}
	return rec.toDomain(), nil
}

func (r *GormUserRepository) SoftDelete(ctx context.Context, id int64) (domain.User, error) {
	active := false
	return r.Update(ctx, id, domain.UserPatch{IsActive: &active})
}

func (r *GormUserRepository) List(ctx context.Context, offset, limit int, activeOnly bool) ([]domain.User, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if activeOnly {
			return db.Where("is_active = ?", true)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&UserRecord{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var recs []UserRecord
	err := r.db.WithContext(ctx).Scopes(filter).Order("id").Offset(offset).Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	users := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toDomain())
	}
	return users, total, nil
}
