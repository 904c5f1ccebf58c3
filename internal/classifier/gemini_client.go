package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiClient implements AIClient with the Google Gemini API. The API
// client is created on first use.
type GeminiClient struct {
	apiKey  string
	model   string
	timeout time.Duration
	logger  logging.Logger

	mu     sync.Mutex
	client *genai.Client
	gen    *genai.GenerativeModel
}

// NewGeminiClient creates a new instance of GeminiClient.
func NewGeminiClient(apiKey, model string, timeout time.Duration, logger logging.Logger) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{apiKey: apiKey, model: model, timeout: timeout, logger: logging.OrDefault(logger)}
}

func (c *GeminiClient) ensureClient(ctx context.Context) (*genai.GenerativeModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != nil {
		return c.gen, nil
	}
	if c.apiKey == "" {
		return nil, &reconerror.UnavailableError{Service: "gemini", Err: fmt.Errorf("GEMINI_API_KEY not set")}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, &reconerror.UnavailableError{Service: "gemini", Err: fmt.Errorf("failed to create client: %w", err)}
	}
	c.client = client
	c.gen = client.GenerativeModel(c.model)
	temperature := float32(0)
	c.gen.Temperature = &temperature
	return c.gen, nil
}

// SuggestCategory implements AIClient.
func (c *GeminiClient) SuggestCategory(ctx context.Context, inv models.NormalizedInvoice, categories []string) (string, error) {
	gen, err := c.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := buildPrompt(inv, categories)
	c.logger.Debug("Requesting AI classification",
		logging.F(logging.FieldCounterparty, inv.CounterpartyName))

	resp, err := gen.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &reconerror.UnavailableError{Service: "gemini", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &reconerror.UnavailableError{Service: "gemini", Err: fmt.Errorf("empty response")}
	}
	return parseCategory(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])), nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client, c.gen = nil, nil
	return err
}

func buildPrompt(inv models.NormalizedInvoice, categories []string) string {
	return fmt.Sprintf(`Classify the following supplier invoice for Swiss SME bookkeeping:
Supplier: %s
Description: %s
Gross amount: %s %s

Assign it to exactly one of the following categories:
%s

Respond in this format:
Category: [category]`,
		inv.CounterpartyName,
		inv.Description,
		inv.GrossAmount().StringFixed(2),
		inv.Currency,
		strings.Join(categories, ", "))
}

// parseCategory extracts the "Category:" line of a response, or the whole
// trimmed response when the model ignored the format.
func parseCategory(response string) string {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Category:") {
			return strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "Category:")), "[]`\"'")
		}
	}
	return strings.TrimSpace(response)
}
