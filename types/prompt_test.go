package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      any
		want    []ImageRef
		wantErr bool
	}{
		{name: "nil", in: nil, want: nil},
		{name: "single string", in: "http://x/img.png", want: []ImageRef{ImageURL("http://x/img.png")}},
		{name: "string slice", in: []string{"a", "b"}, want: []ImageRef{ImageURL("a"), ImageURL("b")}},
		{
			name: "record",
			in:   map[string]any{"url": "http://x/a.png", "detail": "high"},
			want: []ImageRef{ImageSpec{URL: "http://x/a.png", Detail: DetailHigh}},
		},
		{
			name: "mixed any slice",
			in:   []any{"a", map[string]any{"url": "b"}},
			want: []ImageRef{ImageURL("a"), ImageSpec{URL: "b"}},
		},
		{name: "record without url", in: map[string]any{"detail": "low"}, wantErr: true},
		{name: "non-string detail", in: map[string]any{"url": "a", "detail": 3}, wantErr: true},
		{name: "unsupported type", in: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Images(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindPrompt, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetail_Valid(t *testing.T) {
	t.Parallel()

	for _, d := range []Detail{"", DetailAuto, DetailLow, DetailHigh} {
		assert.True(t, d.Valid(), string(d))
	}
	assert.False(t, Detail("ultra").Valid())
}

func TestContentPart_MarshalJSON(t *testing.T) {
	t.Parallel()

	part := ContentPart{Kind: PartText, Text: "hi", Payload: map[string]any{"type": "text", "text": "hi"}}
	data, err := json.Marshal(part)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"hi"}`, string(data))
	assert.Equal(t, "text", PartText.String())
	assert.Equal(t, "image", PartImage.String())
}
