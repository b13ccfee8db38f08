package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"retrotunes-service/internal/domain"
)

// maxExcludeHint bounds the recently-seen list embedded in the prompt so
// request size stays flat no matter how long the player's history grows.
const maxExcludeHint = 30

// Gemini generates question candidates through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.SugaredLogger
}

// NewGemini builds a Gemini-backed generator. Callers must only construct
// one when an API key is configured; the catalog-only mode is first-class
// and is represented by a nil Generator, not by an erroring one.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.SugaredLogger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

var candidateSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":          {Type: genai.TypeString},
			"options":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"correctAnswer": {Type: genai.TypeString},
			"decade":        {Type: genai.TypeString},
			"category":      {Type: genai.TypeString},
		},
		Required: []string{"text", "options", "correctAnswer"},
	},
}

// Generate asks the model for a batch of candidates. Any failure (network,
// malformed body, empty batch) is returned as an error; the caller decides
// how to degrade.
func (g *Gemini) Generate(ctx context.Context, req Request) ([]Candidate, error) {
	prompt := BuildPrompt(req)

	result, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{
				{Text: "És um especialista em quiz de música. Resposta exclusiva em JSON."},
			}},
			ResponseMIMEType: "application/json",
			ResponseSchema:   candidateSchema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("empty generation result")
	}

	body, err := result.Text()
	if err != nil {
		return nil, fmt.Errorf("extract response text: %w", err)
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(body), &candidates); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("generator returned no candidates")
	}

	g.logger.Infow("remote batch generated", "count", len(candidates), "decade", req.Decade, "category", req.Category)
	return candidates, nil
}

// BuildPrompt renders the generation instructions, including the bounded
// most-recent-first list of texts to avoid and the region constraint that
// guards against cross-category contamination.
func BuildPrompt(req Request) string {
	var b strings.Builder

	decadeText := "dos anos " + string(req.Decade)
	if req.Decade == domain.DecadeAll {
		decadeText = "dos anos 80 até hoje"
	}

	var categoryRule string
	switch req.Category {
	case domain.CategoryPortuguese:
		categoryRule = "APENAS música portuguesa, de artistas de Portugal. NÃO incluas artistas brasileiros nem de outros países."
	case domain.CategoryInternational:
		categoryRule = "APENAS música internacional. NÃO incluas artistas portugueses."
	default:
		categoryRule = "Mistura música portuguesa (de Portugal) e internacional."
	}

	fmt.Fprintf(&b, "Gera uma lista de %d perguntas de escolha múltipla sobre música %s.\n\n", req.Count, decadeText)
	b.WriteString("REGRAS:\n")
	b.WriteString("1. Cada pergunta tem exatamente 4 opções distintas e a 'correctAnswer' DEVE ser uma das opções.\n")
	fmt.Fprintf(&b, "2. %s\n", categoryRule)
	if hint := recentFirst(req.ExcludeTexts, maxExcludeHint); len(hint) > 0 {
		fmt.Fprintf(&b, "3. NÃO repitas estas perguntas: %s.\n", strings.Join(hint, " | "))
	}
	b.WriteString("4. Responde APENAS em JSON.")

	return b.String()
}

// recentFirst takes the last n entries of a most-recent-last list and
// reverses them, so the prompt leads with the freshest texts.
func recentFirst(texts []string, n int) []string {
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	out := make([]string, 0, len(texts))
	for i := len(texts) - 1; i >= 0; i-- {
		out = append(out, texts[i])
	}
	return out
}
