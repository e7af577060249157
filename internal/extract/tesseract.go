package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/scanledger/scanledger/internal/entity"
)

// OCRConfig configures the tesseract fallback strategy.
type OCRConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "jpn+eng"
	TessdataDir string
	PSM         int // e.g. 6 for a uniform block of text
}

// OCRStrategy shells out to tesseract for plain text extraction. It is
// the last link in the fallback chain.
type OCRStrategy struct {
	cfg    OCRConfig
	runner Runner
}

func NewOCRStrategy(cfg OCRConfig) *OCRStrategy {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "jpn+eng"
	}
	return &OCRStrategy{cfg: cfg, runner: newExecRunner(nil)}
}

// WithRunner swaps the command runner; used by tests.
func (s *OCRStrategy) WithRunner(r Runner) *OCRStrategy {
	s.runner = r
	return s
}

func (s *OCRStrategy) Name() string { return entity.StrategyOCR }

var reBoxNoise = regexp.MustCompile(`[|｜]{2,}`)

func (s *OCRStrategy) Attempt(ctx context.Context, page entity.PageImage) (entity.ExtractionResult, error) {
	args := []string{page.Path, "stdout", "-l", s.cfg.Lang}
	if s.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", s.cfg.TessdataDir)
	}
	if s.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", s.cfg.PSM))
	}

	out, errb, err := s.runner.Run(ctx, s.cfg.Tesseract, args...)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("tesseract: %w (%s)", err, clip(string(errb), 256))
	}

	txt := strings.TrimSpace(reBoxNoise.ReplaceAllString(string(out), ""))
	return entity.ExtractionResult{
		Text:    txt,
		Success: txt != "",
	}, nil
}
