package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/catalog_admin/internal/events"
	"github.com/Skotchmaster/catalog_admin/internal/models"
	"github.com/Skotchmaster/catalog_admin/internal/transport"
	"github.com/Skotchmaster/catalog_admin/pkg/logging"
)

// RequiredProductFields is the one place the create contract is defined.
var RequiredProductFields = []string{"title", "price", "category"}

type ProductRepo interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, prod *models.Product) (*models.Product, error)
	PatchProduct(ctx context.Context, id uuid.UUID, req transport.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev events.ProductEvent) error
}

type CatalogService struct {
	Repo   ProductRepo
	Events EventPublisher
}

// ParseID rejects anything that is not a store-native identifier, before the store is touched.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

func validPrice(p float64) bool {
	return p >= 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func ValidateCreate(req transport.CreateProductRequest) error {
	present := map[string]bool{
		"title":    strings.TrimSpace(req.Title) != "",
		"price":    req.Price != nil,
		"category": strings.TrimSpace(req.Category) != "",
	}
	var missing []string
	for _, f := range RequiredProductFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if !validPrice(*req.Price) {
		return fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
	}
	return nil
}

func ValidatePatch(req transport.ProductPatch) error {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) == "" {
		return fmt.Errorf("%w: category cannot be empty", ErrValidation)
	}
	if req.Price != nil && !validPrice(*req.Price) {
		return fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
	}
	return nil
}

func (s *CatalogService) publish(ctx context.Context, typ string, id uuid.UUID, title string) {
	if s.Events == nil {
		return
	}
	ev := events.ProductEvent{Type: typ, ProductID: id.String(), Title: title, OccurredAt: time.Now().UTC()}
	if err := s.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Error("event_publish_error", "type", typ, "product_id", id, "error", err)
	}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	items, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	return prod, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	if err := ValidateCreate(req); err != nil {
		return nil, err
	}

	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}
	prod := &models.Product{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Price:       *req.Price,
		Category:    strings.TrimSpace(req.Category),
		Image:       strings.TrimSpace(req.Image),
		InStock:     inStock,
	}

	created, err := s.Repo.CreateProduct(ctx, prod)
	if err != nil {
		return nil, storeErr(err)
	}

	s.publish(ctx, events.ProductCreated, created.ID, created.Title)
	return created, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, rawID string, req transport.ProductPatch) (*models.Product, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	if err := ValidatePatch(req); err != nil {
		return nil, err
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		req.Title = &t
	}
	if req.Category != nil {
		c := strings.TrimSpace(*req.Category)
		req.Category = &c
	}

	prod, err := s.Repo.PatchProduct(ctx, id, req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}

	s.publish(ctx, events.ProductUpdated, prod.ID, prod.Title)
	return prod, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, rawID string) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return storeErr(err)
	}

	s.publish(ctx, events.ProductDeleted, id, "")
	return nil
}
