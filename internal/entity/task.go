package entity

import "github.com/scanledger/scanledger/constants"

// FileTask is one unit of ingestion work corresponding to one source file.
// ID is the source collaborator's handle for the file.
type FileTask struct {
	ID   string             `json:"id"`
	Name string             `json:"name"`
	Size int64              `json:"size"`
	Type constants.FileType `json:"type"`
}

// PageImage is one rasterized page of a task, owned by the pipeline run.
// The file at Path lives inside the run's temp scope and is deleted with it.
type PageImage struct {
	TaskID     string `json:"task_id"`
	PageIndex  int    `json:"page_index"`
	TotalPages int    `json:"total_pages"`
	Path       string `json:"path"`
}

// ExtractionResult is the outcome of one extraction attempt on one page.
// Exactly one of Text or Fields is meaningful when Success is true;
// the result is immutable once produced.
type ExtractionResult struct {
	TaskID    string         `json:"task_id"`
	PageIndex int            `json:"page_index"`
	Strategy  string         `json:"strategy"` // "llm" | "ocr"
	Text      string         `json:"text,omitempty"`
	Fields    *ReceiptFields `json:"fields,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// Extraction strategy names recorded on results for auditability.
const (
	StrategyLLM = "llm"
	StrategyOCR = "ocr"
)

// ReceiptFields is the normalized structured shape returned by the
// LLM extraction strategy, before heuristic parsing fills the gaps.
type ReceiptFields struct {
	VendorName    string      `json:"vendor_name"`
	Date          string      `json:"date"` // YYYY-MM-DD
	Total         string      `json:"total,omitempty"`
	Subtotal      string      `json:"subtotal,omitempty"`
	Tax           string      `json:"tax,omitempty"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	ReceiptNumber string      `json:"receipt_number,omitempty"`
	Cashier       string      `json:"cashier,omitempty"`
	Items         []FieldItem `json:"items,omitempty"`
	Confidence    float64     `json:"confidence,omitempty"` // 0..1
}

// FieldItem is one line item as reported by the structured extractor.
type FieldItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
	Price    string `json:"price,omitempty"`
}
