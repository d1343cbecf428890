// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the read-only lookup over the
// applications table, which is owned by the wider platform; the messaging
// core never writes to it.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
)

// GetApplication fetches an application row by id, or ErrNotFound.
func GetApplication(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	var a domain.Application
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
