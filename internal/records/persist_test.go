package records

import (
	"testing"

	"github.com/deskline/deskline/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openRecordsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Dataset{}, &models.DatasetRow{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestSaveDataset_AndRestore(t *testing.T) {
	db := openRecordsTestDB(t)

	if err := SaveDataset(db, "acme", testTable()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	restored := NewStore(testSchema())
	if err := restored.Restore(db); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	keys, err := restored.MatchKeys("acme", "9876543210", "01/01/1990")
	if err != nil {
		t.Fatalf("MatchKeys after restore: %v", err)
	}
	if len(keys) != 2 || keys[0] != "POL-100" || keys[1] != "POL-101" {
		t.Errorf("MatchKeys = %v, want [POL-100 POL-101]", keys)
	}

	info, err := restored.Info("acme")
	if err != nil {
		t.Fatalf("Info after restore: %v", err)
	}
	if len(info.Columns) != 6 {
		t.Errorf("restored columns = %d, want 6", len(info.Columns))
	}
}

func TestSaveDataset_ReplacesPrior(t *testing.T) {
	db := openRecordsTestDB(t)

	if err := SaveDataset(db, "acme", testTable()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	replacement := &Table{
		Columns: []string{"Policy #", "MobileNumber", "BirthDate"},
		Rows: []Row{
			{"Policy #": "NEW-1", "MobileNumber": "5555555555", "BirthDate": "02/02/2000"},
		},
	}
	if err := SaveDataset(db, "acme", replacement); err != nil {
		t.Fatalf("SaveDataset replacement: %v", err)
	}

	var count int64
	db.Model(&models.Dataset{}).Where("tenant_id = ?", "acme").Count(&count)
	if count != 1 {
		t.Errorf("dataset count = %d, want 1", count)
	}
	var rows int64
	db.Model(&models.DatasetRow{}).Count(&rows)
	if rows != 1 {
		t.Errorf("row count = %d, want 1 (prior rows deleted)", rows)
	}
}

func TestDeleteDataset(t *testing.T) {
	db := openRecordsTestDB(t)

	if err := SaveDataset(db, "acme", testTable()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	if err := DeleteDataset(db, "acme"); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	var count int64
	db.Model(&models.Dataset{}).Count(&count)
	if count != 0 {
		t.Errorf("dataset count = %d, want 0", count)
	}

	// Deleting an absent dataset is a no-op.
	if err := DeleteDataset(db, "ghost"); err != nil {
		t.Errorf("DeleteDataset absent tenant: %v", err)
	}
}
