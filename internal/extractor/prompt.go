package extractor

import (
	"encoding/json"
	"fmt"
)

const generalPrompt = `You are a document analysis assistant. Analyze the document and extract all relevant information.
Return your analysis as a structured JSON with appropriate fields and values.
Use null for missing or unclear information.`

const schemaPromptFormat = `You are a document analysis assistant. Analyze the image and extract the schema of the data.
Schema:
%s

Return the schema in valid JSON format. Use null for missing or unclear fields.`

// promptFor selects the extraction prompt: general when no schema is
// given, schema-directed otherwise.
func promptFor(schema map[string]any) (string, error) {
	if schema == nil {
		return generalPrompt, nil
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render schema prompt: %w", err)
	}
	return fmt.Sprintf(schemaPromptFormat, data), nil
}
