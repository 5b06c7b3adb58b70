package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docverify/internal/collaborators"
	"docverify/internal/verification/models"
)

// ExtractorName identifies the extractor in breakers, metrics and logs.
const ExtractorName = "llm_extract"

// Extractor asks the model for the holder's full name and the issue date.
type Extractor struct {
	client *Client
	guard  *collaborators.Guard
}

func NewExtractor(client *Client, guard *collaborators.Guard) (*Extractor, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if guard == nil {
		return nil, errors.New("guard is required")
	}
	return &Extractor{client: client, guard: guard}, nil
}

const extractSystem = `You extract fields from a document of type %q. Reply with a JSON object {"fio": string|null, "doc_date": string|null}: fio is the full name of the person the document was issued to, doc_date is the issue date as YYYY-MM-DD or DD.MM.YYYY. Use null for fields that are absent. Reply with JSON only.`

func (e *Extractor) Extract(ctx context.Context, text, docType string) (*models.ExtractedFields, error) {
	if docType == "" {
		docType = "unknown"
	}
	system := fmt.Sprintf(extractSystem, docType)
	return collaborators.Call(ctx, e.guard, func(ctx context.Context) (*models.ExtractedFields, error) {
		content, err := e.client.complete(ctx, ExtractorName, system, text)
		if err != nil {
			return nil, err
		}
		return parseFields(content)
	})
}

// parseFields requires both keys to be present, each a string or null.
// Blank strings count as absent.
func parseFields(content string) (*models.ExtractedFields, error) {
	obj, ok := jsonObject(content)
	if !ok {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, ExtractorName, "reply has no JSON object", nil)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, ExtractorName, "parse reply", err)
	}

	fio, err := optionalString(raw, "fio")
	if err != nil {
		return nil, err
	}
	date, err := optionalString(raw, "doc_date")
	if err != nil {
		return nil, err
	}
	return &models.ExtractedFields{FIO: fio, DocDate: date}, nil
}

func optionalString(raw map[string]json.RawMessage, key string) (*string, error) {
	v, ok := raw[key]
	if !ok {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, ExtractorName, "reply has no "+key, nil)
	}
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, ExtractorName, key+" is not a string", err)
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed, nil
}
