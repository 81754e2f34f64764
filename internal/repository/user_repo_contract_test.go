package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"user-directory/internal/domain"
)

// runUserRepositoryContract ejecuta el mismo set de casos contra cualquier implementación.
func runUserRepositoryContract(t *testing.T, newRepo func(t *testing.T) UserRepository) {
	ctx := context.Background()

	newUser := func(name, email string) domain.User {
		return domain.User{Name: name, Email: email, PasswordHash: "hash", IsActive: true}
	}

	t.Run("create assigns id and normalizes email", func(t *testing.T) {
		repo := newRepo(t)
		age := 30
		u := newUser("Ana", "  Ana@Example.COM ")
		u.Age = &age

		created, err := repo.Create(ctx, u)
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		require.Equal(t, "ana@example.com", created.Email)
		require.True(t, created.IsActive)
		require.NotNil(t, created.Age)
		require.Equal(t, 30, *created.Age)
		require.False(t, created.CreatedAt.IsZero())

		byEmail, err := repo.GetByEmail(ctx, "ANA@example.com")
		require.NoError(t, err)
		require.Equal(t, created.ID, byEmail.ID)

		byID, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "Ana", byID.Name)
		require.Equal(t, "hash", byID.PasswordHash)
	})

	t.Run("missing user is ErrNotFound", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByID(ctx, 9999)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = repo.Update(ctx, 9999, domain.UserPatch{})
		require.ErrorIs(t, err, ErrNotFound)
		_, err = repo.SoftDelete(ctx, 9999)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate email rejected even when inactive", func(t *testing.T) {
		repo := newRepo(t)
		first, err := repo.Create(ctx, newUser("Ana", "ana@example.com"))
		require.NoError(t, err)
		_, err = repo.SoftDelete(ctx, first.ID)
		require.NoError(t, err)

		_, err = repo.Create(ctx, newUser("Other", "ANA@example.com"))
		require.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("concurrent creates keep a single row", func(t *testing.T) {
		repo := newRepo(t)
		const workers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			dupes     int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Create(ctx, newUser("Race", "race@example.com"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrDuplicateEmail):
					dupes++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, successes)
		require.Equal(t, workers-1, dupes)
	})

	t.Run("partial update keeps unset fields", func(t *testing.T) {
		repo := newRepo(t)
		age := 40
		u := newUser("Ana", "ana@example.com")
		u.Age = &age
		created, err := repo.Create(ctx, u)
		require.NoError(t, err)

		name := "Ana Maria"
		updated, err := repo.Update(ctx, created.ID, domain.UserPatch{Name: &name})
		require.NoError(t, err)
		require.Equal(t, "Ana Maria", updated.Name)
		require.Equal(t, "ana@example.com", updated.Email)
		require.NotNil(t, updated.Age)
		require.Equal(t, 40, *updated.Age)
		require.True(t, updated.IsActive)

		email := " NEW@example.com"
		updated, err = repo.Update(ctx, created.ID, domain.UserPatch{Email: &email})
		require.NoError(t, err)
		require.Equal(t, "new@example.com", updated.Email)
	})

	t.Run("update to taken email is ErrDuplicateEmail", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, newUser("Ana", "ana@example.com"))
		require.NoError(t, err)
		bob, err := repo.Create(ctx, newUser("Bob", "bob@example.com"))
		require.NoError(t, err)

		email := "ana@example.com"
		_, err = repo.Update(ctx, bob.ID, domain.UserPatch{Email: &email})
		require.ErrorIs(t, err, ErrDuplicateEmail)

		still, err := repo.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		require.Equal(t, "bob@example.com", still.Email)
	})

	t.Run("soft delete keeps row and flips flag", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, newUser("Ana", "ana@example.com"))
		require.NoError(t, err)

		deleted, err := repo.SoftDelete(ctx, created.ID)
		require.NoError(t, err)
		require.False(t, deleted.IsActive)

		stored, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.False(t, stored.IsActive)
	})

	t.Run("list paginates and filters inactive", func(t *testing.T) {
		repo := newRepo(t)
		var ids []int64
		for i := 0; i < 15; i++ {
			u, err := repo.Create(ctx, newUser(fmt.Sprintf("User %02d", i), fmt.Sprintf("user%02d@example.com", i)))
			require.NoError(t, err)
			ids = append(ids, u.ID)
		}
		_, err := repo.SoftDelete(ctx, ids[0])
		require.NoError(t, err)

		items, total, err := repo.List(ctx, 0, 10, true)
		require.NoError(t, err)
		require.Len(t, items, 10)
		require.EqualValues(t, 14, total)
		for _, u := range items {
			require.True(t, u.IsActive)
		}

		items, total, err = repo.List(ctx, 10, 10, true)
		require.NoError(t, err)
		require.Len(t, items, 4)
		require.EqualValues(t, 14, total)

		_, total, err = repo.List(ctx, 0, 10, false)
		require.NoError(t, err)
		require.EqualValues(t, 15, total)
	})
}
