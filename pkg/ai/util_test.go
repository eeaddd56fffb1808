package ai

import (
	"reflect"
	"testing"
)

func TestUnmarshalFlexible(t *testing.T) {
	type analysis struct {
		Focus    string   `json:"focus"`
		Keywords []string `json:"keywords,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  analysis
	}{
		{
			name:  "valid json",
			input: `{"focus":"BOTH","keywords":["backup"]}`,
			want:  analysis{Focus: "BOTH", Keywords: []string{"backup"}},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{focus: 'REPORT'}`,
			want:  analysis{Focus: "REPORT"},
		},
		{
			name:  "trailing comma",
			input: `{"focus":"BOTH",}`,
			want:  analysis{Focus: "BOTH"},
		},
		{
			name:  "truncated object",
			input: `{"focus":"BOTH`,
			want:  analysis{Focus: "BOTH"},
		},
		{
			name:  "double-encoded string",
			input: `"{\"focus\": \"BOTH\"}"`,
			want:  analysis{Focus: "BOTH"},
		},
		{
			name:  "markdown code fence",
			input: "```json\n{\"focus\":\"PROCEDURE\"}\n```",
			want:  analysis{Focus: "PROCEDURE"},
		},
		{
			name:  "doubled leading brace",
			input: "{\n{\n  \"focus\": \"BOTH\"\n}\n",
			want:  analysis{Focus: "BOTH"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got analysis
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("UnmarshalFlexible() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexibleRejectsGarbage(t *testing.T) {
	var out map[string]any
	if err := UnmarshalFlexible("no structured output here", &out); err == nil {
		t.Error("expected error for non-JSON input")
	}
}
