package models

import "time"

// Dataset is one tenant's uploaded table. A tenant has at most one live
// dataset; re-upload replaces the previous one.
type Dataset struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TenantID   string `gorm:"size:64;not null;uniqueIndex"`
	Filename   string `gorm:"size:256"`
	Columns    string `gorm:"type:text;not null"` // JSON array preserving sheet column order
	RowCount   int    `gorm:"not null"`
	UploadedAt time.Time

	Rows []DatasetRow `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}

// DatasetRow is a single record of a dataset. Fields holds the named-column
// values as a JSON object; the owning Dataset's Columns list gives the order.
type DatasetRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	DatasetID uint   `gorm:"not null;index"`
	Fields    string `gorm:"type:text;not null"`
}
