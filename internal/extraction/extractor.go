package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/config"
	"github.com/dstam/smart-import/internal/domain/entity"
)

// Extractor turns raw document text into a structured ExtractedDocument
// using a chat completion model.
type Extractor struct {
	client       *openai.Client
	model        string
	maxRetries   int
	homeCurrency string
	logger       *zap.Logger
}

// NewExtractor creates an extractor. A custom base URL allows pointing
// at a compatible local or proxy endpoint.
func NewExtractor(cfg config.ExtractionConfig, homeCurrency string, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Extractor{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		maxRetries:   cfg.MaxRetries,
		homeCurrency: homeCurrency,
		logger:       logger,
	}
}

// Extract analyzes document text and returns the structured extraction.
// Transient API failures are retried with backoff up to the configured
// limit.
func (e *Extractor) Extract(ctx context.Context, text string) (*entity.ExtractedDocument, error) {
	e.logger.Info("Extracting document", zap.Int("text_length", len(text)))

	req := openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildExtractionPrompt(text),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
			e.logger.Warn("Retrying extraction", zap.Int("attempt", attempt), zap.Error(err))
		}
		resp, err = e.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
	}
	if err != nil {
		e.logger.Error("Extraction API call failed", zap.Error(err))
		return nil, fmt.Errorf("extraction API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from extraction model")
	}

	content := resp.Choices[0].Message.Content

	var raw rawDocument
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		// Fallback: the model may have wrapped the JSON in markdown
		if jsonStr := extractJSON(content); jsonStr != "" {
			if err2 := json.Unmarshal([]byte(jsonStr), &raw); err2 != nil {
				return nil, fmt.Errorf("failed to parse extraction response: %w", err2)
			}
		} else {
			e.logger.Error("Failed to parse extraction response",
				zap.Error(err),
				zap.String("content", content))
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
	}

	doc := e.toDocument(&raw, text)

	e.logger.Info("Document extracted",
		zap.String("vendor", doc.VendorName),
		zap.Float64("total", doc.Total),
		zap.String("currency", doc.Currency),
		zap.Float64("confidence", doc.Confidence.Overall))

	return doc, nil
}

// toDocument sanitizes the raw model output into the domain shape and
// runs the arithmetic and confidence analysis.
func (e *Extractor) toDocument(raw *rawDocument, sourceText string) *entity.ExtractedDocument {
	doc := &entity.ExtractedDocument{
		VendorName:    strings.TrimSpace(raw.VendorName),
		VendorVAT:     CleanVAT(raw.VendorVAT),
		VendorEmail:   strings.ToLower(strings.TrimSpace(raw.VendorEmail)),
		VendorCountry: strings.TrimSpace(raw.VendorCountry),
		VendorAddress: strings.TrimSpace(raw.VendorAddress),
		VendorIBAN:    strings.ToUpper(strings.ReplaceAll(raw.VendorIBAN, " ", "")),
		VendorWebsite: strings.TrimSpace(raw.VendorWebsite),
		InvoiceNumber: strings.TrimSpace(raw.InvoiceNumber),
		InvoiceDate:   ParseDate(raw.InvoiceDate),
		Currency:      NormalizeCurrency(raw.Currency, e.homeCurrency),
		Subtotal:      toNum(raw.Subtotal),
		TaxAmount:     toNum(raw.TaxAmount),
		Total:         toNum(raw.Total),
		Class: entity.Classification{
			Category:    strings.ToLower(strings.TrimSpace(raw.Category)),
			IsRecurring: raw.IsRecurring || DetectRecurring(sourceText),
			Frequency:   strings.ToLower(strings.TrimSpace(raw.Frequency)),
		},
		Confidence: entity.Confidence{
			Vendor:    raw.Confidence.Vendor,
			Amounts:   raw.Confidence.Amounts,
			LineItems: raw.Confidence.LineItems,
			Tax:       raw.Confidence.Tax,
			DocType:   raw.Confidence.DocType,
		},
	}

	if due := ParseDate(raw.DueDate); !due.IsZero() {
		doc.DueDate = &due
	}

	for _, li := range raw.LineItems {
		doc.LineItems = append(doc.LineItems, entity.LineItem{
			Description:    strings.TrimSpace(li.Description),
			Quantity:       toNum(li.Quantity),
			UnitPrice:      toNum(li.UnitPrice),
			TaxRatePercent: toNum(li.TaxRate),
			LineTotal:      toNum(li.LineTotal),
		})
	}

	doc.Class.GLCode = GLCodeForCategory(doc.Class.Category)

	ScoreConfidence(doc, ValidateMath(doc))
	return doc
}

// extractJSON pulls the first balanced JSON object out of a string,
// skipping any markdown fences around it.
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}
