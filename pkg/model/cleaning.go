// pkg/model/cleaning.go
package model

import (
	"fmt"
	"time"
)

// FindingCategory classifies the data-quality condition behind a cleaning operation
type FindingCategory int

const (
	// FindingNone marks plain repairs (imputed or inferred values)
	FindingNone FindingCategory = iota
	// FindingMalformedValue is a field that failed its pattern or parse and became missing
	FindingMalformedValue
	// FindingUnrecoverableRecord is a record dropped because numeric imputation was impossible
	FindingUnrecoverableRecord
	// FindingAmbiguousMapping is a lookup with no table entry; the field stays missing
	FindingAmbiguousMapping
	// FindingOrderingPrecondition is a duplicate or missing transaction identifier
	FindingOrderingPrecondition
)

// String returns a string representation of the finding category
func (fc FindingCategory) String() string {
	switch fc {
	case FindingNone:
		return "None"
	case FindingMalformedValue:
		return "MalformedValue"
	case FindingUnrecoverableRecord:
		return "UnrecoverableRecord"
	case FindingAmbiguousMapping:
		return "AmbiguousMapping"
	case FindingOrderingPrecondition:
		return "OrderingPrecondition"
	default:
		return fmt.Sprintf("Unknown(%d)", fc)
	}
}

// CleaningOperation represents a single data cleaning operation
type CleaningOperation struct {
	ID                string          // Operation identifier (set when persisted)
	RunID             string          // Pipeline run that produced the operation
	Stage             string          // Stage that performed it (e.g. "numeric_validator")
	ColumnName        string          // Column that was cleaned ("*" for whole-record operations)
	OriginalValue     *string         // Original value (nil when missing)
	NewValue          *string         // New value after cleaning (nil when set to missing)
	RowIdentifier     string          // Transaction ID of the row
	CleaningOperation string          // Type of cleaning performed (e.g. "sentinel_to_null")
	CleaningReason    string          // Reason for cleaning (e.g. "sentinel_ERROR")
	Category          FindingCategory // Data-quality classification
	CleanedAt         time.Time       // When the cleaning occurred
}

// Cleaning operation kinds
const (
	OpSentinelToNull     = "sentinel_to_null"
	OpInvalidToNull      = "invalid_to_null"
	OpTrimWhitespace     = "trim_whitespace"
	OpImputeQuantity     = "impute_quantity"
	OpImputeUnitPrice    = "impute_unit_price"
	OpImputeTotalSpent   = "impute_total_spent"
	OpDropRecord         = "drop_record"
	OpImputeLocation     = "impute_location"
	OpImputePayment      = "impute_payment_method"
	OpDefaultCategorical = "default_categorical"
	OpForwardFillDate    = "forward_fill_date"
	OpInferItem          = "infer_item"
	OpRoundQuantity      = "round_quantity"
	OpUnmapped           = "unmapped_value"
	OpDuplicateID        = "duplicate_identifier"
	OpMissingID          = "missing_identifier"
)
