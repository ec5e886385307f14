package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/casegraph/discovery"
)

// ClassifierAdapter narrows a Provider down to the classify.Classifier seam
// (spec §6.3: classify(text, enum, hints) -> {label, confidence}) without
// classify importing this package directly — mirrors the teacher's own
// layering where reasoning/ depends on llm/ but llm/ never depends back.
type ClassifierAdapter struct {
	Provider Provider
	Model    string
}

// Classify sends the caller-built classification prompt as a single user
// message and returns the raw response content; classify.classifyWithLLM
// does the label/confidence unwrapping itself, so this adapter stays a thin
// transport shim.
func (a ClassifierAdapter) Classify(ctx context.Context, text string, hints []string) (string, float64, error) {
	resp, err := a.Provider.Chat(ctx, ChatRequest{
		Model:          a.Model,
		Messages:       []Message{{Role: "user", Content: text}},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return "", 0, fmt.Errorf("llm: classify: %w", err)
	}
	return resp.Content, 0, nil
}

// FactExtractorAdapter narrows a Provider down to the facts.LLMExtractor
// seam (spec §4.8: turn one analytical unit of text into zero or more raw
// JSON fact candidates).
type FactExtractorAdapter struct {
	Provider Provider
	Model    string
}

const factExtractionPromptTemplate = `You are a legal-discovery fact extraction engine.
Read the following excerpt from a %s and extract every discrete factual assertion it contains.

Return a JSON array. Each element must have exactly these keys:
  "content"        : the fact, stated as a single self-contained sentence
  "category"       : a short free-form label for the kind of fact (e.g. "injury", "timeline", "admission")
  "confidence"     : a float between 0 and 1
  "entities"       : optional object mapping entity type to a list of entity names mentioned
  "dateReferences" : optional array of {"raw": "...", "date": "YYYY-MM-DD"} for dates the fact references
  "sourceSnippet"  : optional short verbatim quote the fact was drawn from

Return an empty array if the excerpt contains no extractable facts.
Do NOT include any text outside the JSON array.

Excerpt:
%s
`

// Extract builds the fact-extraction prompt for documentType and returns the
// raw JSON array text facts.parseCandidates expects.
func (a FactExtractorAdapter) Extract(ctx context.Context, text string, documentType discovery.DocumentType) (string, error) {
	prompt := fmt.Sprintf(factExtractionPromptTemplate, humanDocumentType(documentType), text)

	resp, err := a.Provider.Chat(ctx, ChatRequest{
		Model:          a.Model,
		Messages:       []Message{{Role: "user", Content: prompt}},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return "", fmt.Errorf("llm: extract facts: %w", err)
	}
	return resp.Content, nil
}

// humanDocumentType renders a DocumentType's CamelCase constant as a
// lowercase, space-separated phrase for prompt readability (e.g.
// "MedicalRecord" -> "medical record").
func humanDocumentType(dt discovery.DocumentType) string {
	s := string(dt)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// Provider.Embed already satisfies both encode.Embedder and facts.Embedder
// (Embed(ctx, texts) ([][]float32, error)) structurally; no adapter needed.
