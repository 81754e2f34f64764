package domain

import "time"

// User es el registro del directorio. PasswordHash nunca se serializa.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Age          *int      `json:"age"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPatch describe una actualización parcial: nil deja el campo intacto.
type UserPatch struct {
	Name     *string
	Email    *string
	Age      *int
	IsActive *bool
}

// IsEmpty indica si el patch no modifica ningún campo.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Age == nil && p.IsActive == nil
}

// UserPage es una página de usuarios junto al total de registros que cumplen el filtro.
type UserPage struct {
	Items []User
	Total int64
	Page  int
	Limit int
}

// Pages calcula ceil(total/limit).
func (p UserPage) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}
