package repo

import (
	"context"

	"github.com/Skotchmaster/catalog_admin/internal/models"
	"github.com/Skotchmaster/catalog_admin/internal/transport"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var patchColumns = []string{"title", "description", "price", "category", "image", "in_stock", "updated_at"}

func (r *GormRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	items := make([]models.Product, 0)
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) (*models.Product, error) {
	if err := r.DB.WithContext(ctx).Create(prod).Error; err != nil {
		return nil, err
	}
	return prod, nil
}

// PatchProduct merges the non-nil patch fields over the stored row.
// Concurrent patches of one product are last-writer-wins.
func (r *GormRepo) PatchProduct(ctx context.Context, id uuid.UUID, req transport.ProductPatch) (*models.Product, error) {
	db := r.DB.WithContext(ctx)

	var prod models.Product
	if err := db.Where("id = ?", id).First(&prod).Error; err != nil {
		return nil, err
	}

	if req.Title != nil {
		prod.Title = *req.Title
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Price != nil {
		prod.Price = *req.Price
	}
	if req.Category != nil {
		prod.Category = *req.Category
	}
	if req.Image != nil {
		prod.Image = *req.Image
	}
	if req.InStock != nil {
		prod.InStock = *req.InStock
	}
	prod.UpdatedAt = r.DB.NowFunc()

	res := db.Model(&prod).Select(patchColumns).Updates(&prod)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return &prod, nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
