package parse

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
)

// DefaultThreshold is the confidence below which a record is marked
// needs-review instead of processed.
const DefaultThreshold = 0.5

// Input carries one receipt's worth of extraction output into the
// parser: the combined page text, and structured fields when the LLM
// strategy produced them.
type Input struct {
	Text     string
	Fields   *entity.ReceiptFields
	FileName string
}

// Parser builds ReceiptRecords from extraction output. Parse never
// returns an error; on total failure the record carries confidence 0
// and explanatory notes.
type Parser struct {
	logger    *slog.Logger
	threshold float64
}

func New(logger *slog.Logger, threshold float64) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Parser{logger: logger, threshold: threshold}
}

// Parse builds a record from structured fields when available, fills
// the gaps from the raw text with the heuristic pattern families, then
// scores confidence and sets the status gate.
func (p *Parser) Parse(in Input) entity.ReceiptRecord {
	rec := entity.ReceiptRecord{
		ID:         uuid.New(),
		SourceFile: in.FileName,
		Status:     constants.StatusUnprocessed, // until the confidence gate decides
		CreatedAt:  time.Now().UTC(),
	}

	if in.Fields != nil {
		p.seedFromFields(&rec, in.Fields)
	}

	text := NormalizeText(in.Text)
	if text == "" && in.Fields == nil {
		rec.VendorName = UnknownVendor
		rec.Confidence = 0.0
		rec.Status = constants.StatusNeedsReview
		rec.AddNote("no text or fields extracted; nothing to parse")
		p.logger.Warn("parse.empty_input", "file", in.FileName)
		return rec
	}

	p.fillFromText(&rec, text)

	heur := Score(&rec, text)
	if in.Fields != nil && in.Fields.Confidence > 0 {
		// blend model self-assessment with the heuristic, weighting the
		// heuristic higher since it inspects the final record.
		rec.Confidence = clamp01(0.7*heur + 0.3*in.Fields.Confidence)
	} else {
		rec.Confidence = heur
	}

	if rec.Confidence < p.threshold {
		rec.Status = constants.StatusNeedsReview
		rec.AddNote("confidence below threshold; flagged for review")
	} else {
		rec.Status = constants.StatusProcessed
	}

	p.logger.Debug("parse.done",
		"file", in.FileName,
		"vendor", rec.VendorName,
		"has_date", rec.Date != nil,
		"has_total", rec.Total != nil,
		"items", len(rec.Items),
		"confidence", rec.Confidence,
		"status", string(rec.Status),
	)
	return rec
}

// seedFromFields copies the structured extractor's output into the
// record, tolerating malformed decimals and dates field by field.
func (p *Parser) seedFromFields(rec *entity.ReceiptRecord, f *entity.ReceiptFields) {
	rec.VendorName = f.VendorName
	rec.PaymentMethod = f.PaymentMethod
	rec.ReceiptNumber = f.ReceiptNumber
	rec.Cashier = f.Cashier

	if f.Date != "" {
		if t, err := ParseYMD(f.Date); err == nil {
			rec.Date = &t
		} else {
			rec.AddNote("structured date unparseable: " + f.Date)
		}
	}
	rec.Total = parseDecimal(f.Total)
	rec.Subtotal = parseDecimal(f.Subtotal)
	rec.Tax = parseDecimal(f.Tax)

	for _, it := range f.Items {
		price := parseDecimal(it.Price)
		if it.Name == "" || price == nil {
			continue
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		rec.Items = append(rec.Items, entity.LineItem{Name: it.Name, Quantity: qty, Price: *price})
	}
}

// fillFromText runs the heuristic pattern families over the OCR text
// for every field the structured pass left empty.
func (p *Parser) fillFromText(rec *entity.ReceiptRecord, text string) {
	if text == "" {
		return
	}

	amounts := ExtractAmounts(text)
	if rec.Total == nil {
		rec.Total = amounts.Total
	}
	if rec.Subtotal == nil {
		rec.Subtotal = amounts.Subtotal
	}
	if rec.Tax == nil {
		rec.Tax = amounts.Tax
	}
	if ok, note := amounts.CheckConsistency(); !ok {
		// the total, if found, is still trusted
		rec.AddNote(note)
		p.logger.Warn("parse.amounts.inconsistent", "file", rec.SourceFile)
	}

	if rec.Date == nil {
		rec.Date = ExtractDate(text)
	}
	if rec.VendorName == "" {
		rec.VendorName = ExtractVendor(text)
	}
	if rec.PaymentMethod == "" {
		rec.PaymentMethod = ExtractPaymentMethod(text)
	}
	if rec.ReceiptNumber == "" {
		rec.ReceiptNumber = ExtractReceiptNumber(text)
	}
	if rec.Cashier == "" {
		rec.Cashier = ExtractCashier(text)
	}
	if len(rec.Items) == 0 {
		rec.Items = ExtractItems(text)
	}
}

func parseDecimal(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
