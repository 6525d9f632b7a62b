package records

import (
	"encoding/json"
	"fmt"

	"github.com/deskline/deskline/internal/models"
	"gorm.io/gorm"
)

// SaveDataset persists a tenant's table, replacing any previous dataset for
// that tenant in one transaction.
func SaveDataset(db *gorm.DB, tenantID string, table *Table) error {
	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return fmt.Errorf("records: marshal columns: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var prior models.Dataset
		result := tx.Where("tenant_id = ?", tenantID).First(&prior)
		if result.Error == nil {
			if err := tx.Where("dataset_id = ?", prior.ID).Delete(&models.DatasetRow{}).Error; err != nil {
				return fmt.Errorf("records: delete prior rows: %w", err)
			}
			if err := tx.Delete(&prior).Error; err != nil {
				return fmt.Errorf("records: delete prior dataset: %w", err)
			}
		} else if result.Error != gorm.ErrRecordNotFound {
			return fmt.Errorf("records: check prior dataset: %w", result.Error)
		}

		ds := models.Dataset{
			TenantID:   tenantID,
			Filename:   table.Filename,
			Columns:    string(columns),
			RowCount:   len(table.Rows),
			UploadedAt: table.UploadedAt,
		}
		if err := tx.Create(&ds).Error; err != nil {
			return fmt.Errorf("records: create dataset: %w", err)
		}

		for _, row := range table.Rows {
			fields, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("records: marshal row: %w", err)
			}
			if err := tx.Create(&models.DatasetRow{
				DatasetID: ds.ID,
				Fields:    string(fields),
			}).Error; err != nil {
				return fmt.Errorf("records: create row: %w", err)
			}
		}
		return nil
	})
}

// DeleteDataset removes a tenant's persisted dataset, if any.
func DeleteDataset(db *gorm.DB, tenantID string) error {
	var prior models.Dataset
	result := db.Where("tenant_id = ?", tenantID).First(&prior)
	if result.Error == gorm.ErrRecordNotFound {
		return nil
	}
	if result.Error != nil {
		return fmt.Errorf("records: find dataset: %w", result.Error)
	}
	if err := db.Where("dataset_id = ?", prior.ID).Delete(&models.DatasetRow{}).Error; err != nil {
		return fmt.Errorf("records: delete rows: %w", err)
	}
	if err := db.Delete(&prior).Error; err != nil {
		return fmt.Errorf("records: delete dataset: %w", err)
	}
	return nil
}

// Restore loads every persisted dataset into the store, called at startup so
// uploads survive a restart.
func (s *Store) Restore(db *gorm.DB) error {
	var datasets []models.Dataset
	if err := db.Find(&datasets).Error; err != nil {
		return fmt.Errorf("records: restore: list datasets: %w", err)
	}

	for _, ds := range datasets {
		var columns []string
		if err := json.Unmarshal([]byte(ds.Columns), &columns); err != nil {
			return fmt.Errorf("records: restore %s: unmarshal columns: %w", ds.TenantID, err)
		}

		var dbRows []models.DatasetRow
		if err := db.Where("dataset_id = ?", ds.ID).Order("id").Find(&dbRows).Error; err != nil {
			return fmt.Errorf("records: restore %s: list rows: %w", ds.TenantID, err)
		}

		rows := make([]Row, 0, len(dbRows))
		for _, dr := range dbRows {
			var row Row
			if err := json.Unmarshal([]byte(dr.Fields), &row); err != nil {
				return fmt.Errorf("records: restore %s: unmarshal row: %w", ds.TenantID, err)
			}
			rows = append(rows, row)
		}

		table := &Table{
			Columns:    columns,
			Rows:       rows,
			Filename:   ds.Filename,
			UploadedAt: ds.UploadedAt,
		}
		if err := s.Load(ds.TenantID, table); err != nil {
			return fmt.Errorf("records: restore %s: %w", ds.TenantID, err)
		}
	}
	return nil
}
