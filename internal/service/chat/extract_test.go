package chat

import (
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestExtractText(t *testing.T) {
	type custom struct {
		Content string
	}

	cases := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"string", "plain", "plain", true},
		{"empty string", "", "", false},
		{"message pointer", schema.AssistantMessage("hi", nil), "hi", true},
		{"nil message pointer", (*schema.Message)(nil), "", false},
		{"message value", schema.Message{Content: "val"}, "val", true},
		{"mapping with content", map[string]any{"content": "mapped"}, "mapped", true},
		{"mapping without content", map[string]any{"other": 1}, "", false},
		{
			"mapping with messages takes last",
			map[string]any{"messages": []any{
				map[string]any{"content": "first"},
				map[string]any{"content": "last"},
			}},
			"last", true,
		},
		{"struct with Content field", custom{Content: "field"}, "field", true},
		{"struct pointer with Content field", &custom{Content: "ptr"}, "ptr", true},
		{"unsupported shape", 42, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractText(tc.in)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("extractText(%v) = %q, %t; want %q, %t", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}
