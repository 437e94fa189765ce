package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"toptry/internal/imaging"
)

func responseWithParts(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: parts}},
		},
	}
}

func TestFirstInlineImage(t *testing.T) {
	t.Parallel()

	t.Run("image in second part wins", func(t *testing.T) {
		t.Parallel()

		resp := responseWithParts(
			&genai.Part{Text: "here is your render"},
			&genai.Part{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "image/png"}},
			&genai.Part{InlineData: &genai.Blob{Data: []byte{9, 9, 9}, MIMEType: "image/jpeg"}},
		)

		result, ok := firstInlineImage(resp)
		require.True(t, ok)
		assert.Equal(t, []byte{1, 2, 3}, result.Data)
		assert.Equal(t, "image/png", result.MIMEType)
	})

	t.Run("missing mime defaults to png", func(t *testing.T) {
		t.Parallel()

		resp := responseWithParts(
			&genai.Part{InlineData: &genai.Blob{Data: []byte{4, 5}}},
		)

		result, ok := firstInlineImage(resp)
		require.True(t, ok)
		assert.Equal(t, "image/png", result.MIMEType)
	})

	t.Run("text-only response yields nothing", func(t *testing.T) {
		t.Parallel()

		_, ok := firstInlineImage(responseWithParts(&genai.Part{Text: "sorry"}))
		assert.False(t, ok)
	})

	t.Run("empty inline data is skipped", func(t *testing.T) {
		t.Parallel()

		_, ok := firstInlineImage(responseWithParts(
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png"}},
		))
		assert.False(t, ok)
	})

	t.Run("nil and empty responses", func(t *testing.T) {
		t.Parallel()

		_, ok := firstInlineImage(nil)
		assert.False(t, ok)

		_, ok = firstInlineImage(&genai.GenerateContentResponse{})
		assert.False(t, ok)
	})
}

func TestTryOnGarmentBounds(t *testing.T) {
	t.Parallel()

	c := NewClient("key", "", "", 0)
	selfie := imaging.Image{Data: []byte{1}, MIMEType: "image/jpeg"}
	garment := imaging.Image{Data: []byte{2}, MIMEType: "image/jpeg"}

	_, err := c.TryOn(context.Background(), selfie, nil, "")
	assert.ErrorIs(t, err, ErrTooManyItems)

	six := []imaging.Image{garment, garment, garment, garment, garment, garment}
	_, err = c.TryOn(context.Background(), selfie, six, "")
	assert.ErrorIs(t, err, ErrTooManyItems)
}

func TestCredentialsMissing(t *testing.T) {
	t.Parallel()

	c := NewClient("", "", "", 0)
	img := imaging.Image{Data: []byte{1}, MIMEType: "image/jpeg"}

	_, err := c.TryOn(context.Background(), img, []imaging.Image{img}, "")
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = c.Cutout(context.Background(), img)
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = c.Attributes(context.Background(), img, "", "")
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	// Captioning degrades silently instead of failing.
	assert.Empty(t, c.DescribeLook(context.Background(), img, "jeans"))
}

func TestResultDataURL(t *testing.T) {
	t.Parallel()

	r := Result{Data: []byte{0x01, 0x02}, MIMEType: "image/png"}
	assert.Equal(t, "data:image/png;base64,AQI=", r.DataURL())
}
