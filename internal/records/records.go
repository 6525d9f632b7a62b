// Package records holds the per-tenant tabular datasets and answers the
// filtered lookups the dialogue engine runs against them.
package records

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoDataset is returned when a tenant has no table loaded.
var ErrNoDataset = errors.New("records: no dataset loaded")

// ErrNoMatch is returned by FetchRecord when no row matches all three fields.
var ErrNoMatch = errors.New("records: no matching record")

// Schema names the required columns of a tenant's table and the columns
// stripped from user-visible output.
type Schema struct {
	MobileColumn    string
	BirthDateColumn string
	KeyColumn       string
	ExcludedColumns []string
}

// Row is one record keyed by column name. All cell values are strings.
type Row map[string]string

// Field is a single displayable column of a record. Order follows the sheet.
type Field struct {
	Name  string
	Value string
}

// Table is an immutable-per-load tenant dataset. Columns preserves the
// header order of the uploaded sheet.
type Table struct {
	Columns    []string
	Rows       []Row
	Filename   string
	UploadedAt time.Time
}

// Store maps tenant IDs to their loaded tables. Tables are replaced
// atomically on load; readers see either the old or the new table, never a
// mix. Lookups are synchronous reads and expose no mutation of a table.
type Store struct {
	schema Schema

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewStore creates a Store with the given schema.
func NewStore(schema Schema) *Store {
	return &Store{
		schema: schema,
		tables: make(map[string]*Table),
	}
}

// Load validates and publishes a table for a tenant, replacing any prior
// table atomically.
func (s *Store) Load(tenantID string, table *Table) error {
	if tenantID == "" {
		return fmt.Errorf("records: load: tenant id is required")
	}
	if table == nil {
		return fmt.Errorf("records: load: table is required")
	}
	for _, required := range []string{s.schema.MobileColumn, s.schema.BirthDateColumn, s.schema.KeyColumn} {
		if !containsColumn(table.Columns, required) {
			return fmt.Errorf("records: load: dataset is missing required column %q", required)
		}
	}
	if table.UploadedAt.IsZero() {
		table.UploadedAt = time.Now()
	}

	s.mu.Lock()
	s.tables[tenantID] = table
	s.mu.Unlock()
	return nil
}

// Drop removes a tenant's table, if any.
func (s *Store) Drop(tenantID string) {
	s.mu.Lock()
	delete(s.tables, tenantID)
	s.mu.Unlock()
}

// Info returns the loaded table's filename, columns, row count, and upload
// time, or ErrNoDataset.
func (s *Store) Info(tenantID string) (*Table, error) {
	table, err := s.table(tenantID)
	if err != nil {
		return nil, err
	}
	// Safe to hand out: tables are never mutated after Load.
	return table, nil
}

// HasMobile reports whether any row carries the given mobile number.
// Used as the gate before the dialogue advances past the mobile step.
func (s *Store) HasMobile(tenantID, mobile string) (bool, error) {
	table, err := s.table(tenantID)
	if err != nil {
		return false, err
	}
	for _, row := range table.Rows {
		if row[s.schema.MobileColumn] == mobile {
			return true, nil
		}
	}
	return false, nil
}

// MatchKeys returns the record keys of all rows matching both mobile and
// birth date exactly (case-sensitive, as stored), in sheet order.
func (s *Store) MatchKeys(tenantID, mobile, birthDate string) ([]string, error) {
	table, err := s.table(tenantID)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, row := range table.Rows {
		if row[s.schema.MobileColumn] == mobile && row[s.schema.BirthDateColumn] == birthDate {
			keys = append(keys, row[s.schema.KeyColumn])
		}
	}
	return keys, nil
}

// FetchRecord returns the first row matching mobile, birth date, and record
// key, as ordered fields with excluded columns stripped.
func (s *Store) FetchRecord(tenantID, mobile, birthDate, key string) ([]Field, error) {
	table, err := s.table(tenantID)
	if err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		if row[s.schema.MobileColumn] != mobile ||
			row[s.schema.BirthDateColumn] != birthDate ||
			row[s.schema.KeyColumn] != key {
			continue
		}
		var fields []Field
		for _, col := range table.Columns {
			if s.excluded(col) {
				continue
			}
			if value, ok := row[col]; ok {
				fields = append(fields, Field{Name: col, Value: value})
			}
		}
		return fields, nil
	}
	return nil, ErrNoMatch
}

// table returns the tenant's current table or ErrNoDataset.
func (s *Store) table(tenantID string) (*Table, error) {
	s.mu.RLock()
	table, ok := s.tables[tenantID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoDataset
	}
	return table, nil
}

// excluded reports whether a column is on the exclusion list.
func (s *Store) excluded(col string) bool {
	for _, x := range s.schema.ExcludedColumns {
		if x == col {
			return true
		}
	}
	return false
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}
