package migration_1

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Image struct {
	Vector datatypes.JSON `gorm:"type:jsonb"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Image{}, "Vector"); err != nil {
		return fmt.Errorf("error adding Vector column: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Image{}, "Vector"); err != nil {
		return fmt.Errorf("error dropping Vector column: %w", err)
	}

	return nil
}
