package extractor

import "testing"

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
		ok   bool
	}{
		{
			name: "bare object",
			text: `{"total": 10}`,
			want: map[string]any{"total": float64(10)},
			ok:   true,
		},
		{
			name: "fenced json block",
			text: "Here you go:\n```json\n{\"total\": 10}\n```\nLet me know.",
			want: map[string]any{"total": float64(10)},
			ok:   true,
		},
		{
			name: "fenced block without language tag",
			text: "```\n{\"vendor\": \"acme\"}\n```",
			want: map[string]any{"vendor": "acme"},
			ok:   true,
		},
		{
			name: "object buried in prose",
			text: `The extracted data is {"total": 10} as requested.`,
			want: map[string]any{"total": float64(10)},
			ok:   true,
		},
		{
			name: "no json at all",
			text: "I cannot read this document.",
			ok:   false,
		},
		{
			name: "empty input",
			text: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseJSON(tt.text)
			if ok != tt.ok {
				t.Fatalf("ParseJSON ok=%v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("key %s: got %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
