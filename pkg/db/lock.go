package db

import "gorm.io/gorm"

// ForUpdate appends a row-level lock clause on dialects that support it.
// SQLite serializes writers on its own, so the clause is omitted there.
func ForUpdate(tx *gorm.DB) string {
	switch tx.Dialector.Name() {
	case "sqlite":
		return ""
	default:
		return " FOR UPDATE"
	}
}
