package transport

import (
	"time"

	"github.com/Skotchmaster/catalog_admin/internal/models"
	"github.com/google/uuid"
)

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      UserResponse
}

// CreateProductRequest keeps price and inStock as pointers so that an
// absent field can be told apart from a zero value.
type CreateProductRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Category    string   `json:"category"`
	Image       string   `json:"image"`
	InStock     *bool    `json:"inStock"`
}

// ProductPatch enumerates the client-mutable product fields. A nil field is
// left untouched; id and timestamps are never patchable.
type ProductPatch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	Image       *string  `json:"image"`
	InStock     *bool    `json:"inStock"`
}

func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil &&
		p.Category == nil && p.Image == nil && p.InStock == nil
}
