// Package gemini implements the structured (LLM) extraction strategy
// against the Google Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/scanledger/scanledger/internal/entity"
)

// Config configures the Gemini extraction strategy.
type Config struct {
	APIKey string
	Model  string // default "gemini-2.5-flash"
}

// Client calls the Gemini vision API and returns structured receipt
// fields. It is the first link in the engine's fallback chain.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  client.GenerativeModel(cfg.Model),
		logger: logger,
	}, nil
}

func (c *Client) Name() string { return entity.StrategyLLM }

// Attempt sends the page image to Gemini and parses the JSON reply
// into ReceiptFields. The reply is sanitized, validated against the
// receipt schema, and rejected (error, so the engine falls back to
// OCR) when it does not conform.
func (c *Client) Attempt(ctx context.Context, page entity.PageImage) (entity.ExtractionResult, error) {
	data, err := os.ReadFile(page.Path)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("read page image: %w", err)
	}

	resp, err := c.model.GenerateContent(ctx,
		genai.ImageData("png", data),
		genai.Text(receiptPrompt),
	)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return entity.ExtractionResult{}, fmt.Errorf("no response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	doc := ExtractJSONObject(sb.String())
	if doc == "" {
		return entity.ExtractionResult{}, fmt.Errorf("no JSON object in gemini response")
	}

	if err := ValidateFields([]byte(doc)); err != nil {
		c.logger.Warn("gemini.response.invalid", "task_id", page.TaskID, "page", page.PageIndex, "error", err)
		return entity.ExtractionResult{}, fmt.Errorf("gemini response failed schema validation: %w", err)
	}

	var fields entity.ReceiptFields
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("unmarshal fields: %w", err)
	}

	return entity.ExtractionResult{
		Fields:  &fields,
		Success: fields.VendorName != "" || fields.Total != "",
	}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

const receiptPrompt = `You are analyzing a scanned receipt. Read all text carefully,
including Japanese text, and extract these fields:

1. vendor_name: the store or business name, usually at the top.
2. date: the transaction date in YYYY-MM-DD format.
3. total: the final total amount as a plain decimal string (e.g. "1100").
4. subtotal: the pre-tax amount if shown, as a decimal string.
5. tax: the tax amount if shown, as a decimal string.
6. payment_method: one of "cash", "credit", "debit", "e-money", "qr" if identifiable.
7. receipt_number: the receipt or slip number if shown.
8. cashier: the cashier name or register id if shown.
9. items: an array of {"name", "quantity", "price"} for each line item.
10. confidence: your own 0..1 estimate of extraction correctness.

Return ONLY a valid JSON object with exactly these keys. Omit keys you
cannot determine. Prices are decimal strings without currency marks or
thousands separators. Do not wrap the JSON in markdown fences.`
