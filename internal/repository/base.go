// Package repository implements the data access layer for the application.
package repository

import (
	"errors"

	"fableweaver/internal/database"
	"fableweaver/internal/models"

	"gorm.io/gorm"
)

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// mapErr turns gorm errors into the application taxonomy.
func mapErr(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector != nil && db.Name() == "postgres"
}
