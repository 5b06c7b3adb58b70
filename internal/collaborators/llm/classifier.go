package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docverify/internal/collaborators"
	pstrings "docverify/pkg/platform/strings"
)

// ClassifierName identifies the classifier in breakers, metrics and logs.
const ClassifierName = "llm_classify"

// Classifier asks the model which document types the text contains.
type Classifier struct {
	client *Client
	guard  *collaborators.Guard
	types  []string
}

// NewClassifier builds a classifier. types are the canonical codes offered
// to the model; other labels are still accepted and canonicalized later.
func NewClassifier(client *Client, guard *collaborators.Guard, types []string) (*Classifier, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if guard == nil {
		return nil, errors.New("guard is required")
	}
	return &Classifier{client: client, guard: guard, types: types}, nil
}

const classifySystem = `You classify scanned documents. Reply with a JSON object {"doc_types": [...]} listing every distinct document type present in the text. Use these codes when one applies: %s. Reply with JSON only.`

func (c *Classifier) Classify(ctx context.Context, text string) ([]string, error) {
	system := fmt.Sprintf(classifySystem, strings.Join(c.types, ", "))
	return collaborators.Call(ctx, c.guard, func(ctx context.Context) ([]string, error) {
		content, err := c.client.complete(ctx, ClassifierName, system, text)
		if err != nil {
			return nil, err
		}
		return parseDocTypes(content)
	})
}

// parseDocTypes accepts {"doc_types": [..]} and, from less disciplined
// models, {"doc_types": "single"}.
func parseDocTypes(content string) ([]string, error) {
	obj, ok := jsonObject(content)
	if !ok {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, ClassifierName, "reply has no JSON object", nil)
	}

	var r struct {
		DocTypes json.RawMessage `json:"doc_types"`
	}
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, ClassifierName, "parse reply", err)
	}
	if len(r.DocTypes) == 0 || string(r.DocTypes) == "null" {
		return nil, collaborators.NewCallError(collaborators.CategoryBadData, ClassifierName, "reply has no doc_types", nil)
	}

	var list []string
	if err := json.Unmarshal(r.DocTypes, &list); err == nil {
		return pstrings.DedupeAndTrim(list), nil
	}
	var single string
	if err := json.Unmarshal(r.DocTypes, &single); err == nil {
		return pstrings.DedupeAndTrim([]string{single}), nil
	}
	return nil, collaborators.NewCallError(collaborators.CategoryBadData, ClassifierName, "doc_types is neither a list nor a string", nil)
}
