package repo

import (
	"context"

	"github.com/Skotchmaster/catalog_admin/internal/models"
	pkgdb "github.com/Skotchmaster/catalog_admin/pkg/db"
	"gorm.io/gorm"
)

type GormRepo struct {
	DB *gorm.DB
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Product{})
}

func (r *GormRepo) Ping(ctx context.Context) error {
	return pkgdb.Ping(ctx, r.DB)
}
