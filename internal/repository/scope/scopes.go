package scope

import "gorm.io/gorm"

// ExcludeSoftDelete hides soft-deleted rows. Comments keep their row after
// deletion so replies stay anchored; queries opt out of seeing them here.
func ExcludeSoftDelete(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}
