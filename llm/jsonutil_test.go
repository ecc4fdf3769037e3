package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain object",
			content: `{"needsUpdate": true}`,
			want:    `{"needsUpdate": true}`,
		},
		{
			name:    "json code fence",
			content: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:    `{"a": 1}`,
		},
		{
			name:    "bare code fence",
			content: "```\n{\"a\": 1}\n```",
			want:    `{"a": 1}`,
		},
		{
			name:    "object embedded in prose",
			content: `The verdict is {"needsUpdate": false} as requested.`,
			want:    `{"needsUpdate": false}`,
		},
		{
			name:    "no object",
			content: "I could not produce a verdict.",
			want:    "",
		},
		{
			name:    "empty input",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.content))
		})
	}
}

func TestExtractJSONCleansArtifacts(t *testing.T) {
	content := `{
	"name": "go", // the topic
	"url": "https://go.dev/dl/",
	"versions": ["1.23.4", "1.22.10",],
}`

	raw := ExtractJSON(content)
	require.NotEmpty(t, raw)

	var parsed struct {
		Name     string   `json:"name"`
		URL      string   `json:"url"`
		Versions []string `json:"versions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &parsed))

	assert.Equal(t, "go", parsed.Name)
	// The // inside the URL string must survive comment stripping.
	assert.Equal(t, "https://go.dev/dl/", parsed.URL)
	assert.Len(t, parsed.Versions, 2)
}

func TestStripLineComment(t *testing.T) {
	assert.Equal(t, `"key": 1,`, stripLineComment(`"key": 1, // comment`))
	assert.Equal(t, `"url": "http://a//b"`, stripLineComment(`"url": "http://a//b"`))
	assert.Equal(t, `"escaped": "a\"b"`, stripLineComment(`"escaped": "a\"b"`))
	assert.Equal(t, "plain line", stripLineComment("plain line"))
}
