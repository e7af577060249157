package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/scanledger/scanledger/constants"
)

// ReceiptRecord is the persisted result of processing one receipt file.
// Built incrementally by the field parser and categorizer; written once
// to the sink and never mutated afterwards except by explicit re-processing.
type ReceiptRecord struct {
	ID            uuid.UUID          `json:"id"`
	Date          *time.Time         `json:"date,omitempty"`
	VendorName    string             `json:"vendor_name"`
	Total         *float64           `json:"total,omitempty"`
	Subtotal      *float64           `json:"subtotal,omitempty"`
	Tax           *float64           `json:"tax,omitempty"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	Items         []LineItem         `json:"items,omitempty"`
	ReceiptNumber string             `json:"receipt_number,omitempty"`
	Cashier       string             `json:"cashier,omitempty"`
	Category      constants.Category `json:"category"`
	AccountCode   constants.Account  `json:"account_code"`
	Confidence    float64            `json:"confidence"` // 0..1
	Notes         []string           `json:"notes,omitempty"`
	Status        constants.Status   `json:"status"`
	SourceFile    string             `json:"source_file"`
	ContentHash   string             `json:"content_hash,omitempty"` // sha256 hex of the source bytes
	CreatedAt     time.Time          `json:"created_at"`
}

// LineItem is one purchased item on a receipt.
type LineItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// AddNote appends a processing note, keeping the record's history of
// warnings and degradations human readable.
func (r *ReceiptRecord) AddNote(note string) {
	if note == "" {
		return
	}
	r.Notes = append(r.Notes, note)
}
