// Package errors provides structured error handling for AgentVault.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (SQLite, index persistence)
//   - 3XX: Producer errors (export parsing, vault scanning)
//   - 4XX: Query errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates document store and index persistence errors.
	CategoryStore Category = "STORE"
	// CategoryProducer indicates export parsing and vault scanning errors.
	CategoryProducer Category = "PRODUCER"
	// CategoryQuery indicates search query errors.
	CategoryQuery Category = "QUERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreOpen    = "ERR_201_STORE_OPEN"
	ErrCodeStoreIO      = "ERR_202_STORE_IO"
	ErrCodeStoreCorrupt = "ERR_203_STORE_CORRUPT"
	ErrCodeStoreLocked  = "ERR_204_STORE_LOCKED"
	ErrCodeDocNotFound  = "ERR_205_DOC_NOT_FOUND"

	// Producer errors (300-399)
	ErrCodeExportMalformed = "ERR_301_EXPORT_MALFORMED"
	ErrCodeVaultUnreadable = "ERR_302_VAULT_UNREADABLE"

	// Query errors (400-499)
	ErrCodeQueryFailed = "ERR_401_QUERY_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryProducer
	case '4':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}
