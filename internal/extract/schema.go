package extract

import (
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// SchemaName is the name under which the response schema is registered
// with the provider.
const SchemaName = "tender_extraction"

// DocumentTypes enumerates the document classifications the model may
// return.
var DocumentTypes = []string{"checklist", "form", "contract", "declaration", "instruction", "other"}

// Response is the decoded model output for one document.
type Response struct {
	DocumentSummary string `json:"document_summary"`
	DocumentType    string `json:"document_type"`
	Items           []Item `json:"items"`
}

// Item is one extracted requirement. The schema is flat so that providers
// with nesting limits accept it; relationships are referenced by title.
type Item struct {
	ItemType          string   `json:"item_type"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	SourceText        string   `json:"source_text"`
	SourceLocation    string   `json:"source_location"`
	IsRequired        *bool    `json:"is_required"`
	IsChecked         bool     `json:"is_checked"`
	DeadlineDate      string   `json:"deadline_date"`
	Confidence        *float64 `json:"confidence"`
	TagsCSV           string   `json:"tags_csv"`
	RequiresItem      string   `json:"requires_item"`
	ConditionalOnItem string   `json:"conditional_on_item"`
}

// Required keys of the response object and of every item.
var (
	responseFields = []string{"document_summary", "document_type", "items"}
	itemFields     = []string{
		"item_type", "title", "description", "source_text", "source_location",
		"is_required", "is_checked", "deadline_date", "confidence", "tags_csv",
		"requires_item", "conditional_on_item",
	}
)

// Schema returns the strict JSON schema sent with every extraction request.
func Schema() *jsonschema.Definition {
	itemTypes := make([]string, len(model.NodeTypes))
	for i, t := range model.NodeTypes {
		itemTypes[i] = string(t)
	}

	str := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.String, Description: desc}
	}

	item := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"item_type": {
				Type:        jsonschema.String,
				Enum:        itemTypes,
				Description: "Type of extracted item",
			},
			"title":           str("Short descriptive title"),
			"description":     str("Full description of the requirement"),
			"source_text":     str("Original German text the item was extracted from"),
			"source_location": str("Page or section reference if available"),
			"is_required": {
				Type:        jsonschema.Boolean,
				Description: "True for mandatory items, false for optional ones",
			},
			"is_checked": {
				Type:        jsonschema.Boolean,
				Description: "For checkboxes: true if checked; false otherwise",
			},
			"deadline_date": str("ISO date if the item has a deadline, empty string otherwise"),
			"confidence": {
				Type:        jsonschema.Number,
				Description: "Confidence score between 0 and 1",
			},
			"tags_csv":            str("Comma-separated tags"),
			"requires_item":       str("Title of the item this one requires, empty if none"),
			"conditional_on_item": str("Title of the condition this item depends on, empty if none"),
		},
		Required:             itemFields,
		AdditionalProperties: false,
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"document_summary": str("Brief description of what this document is"),
			"document_type": {
				Type:        jsonschema.String,
				Enum:        DocumentTypes,
				Description: "Type of document",
			},
			"items": {
				Type:        jsonschema.Array,
				Description: "Extracted requirements, checkboxes, signatures and so on",
				Items:       &item,
			},
		},
		Required:             responseFields,
		AdditionalProperties: false,
	}
}
