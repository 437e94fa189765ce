package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"toptry/internal/imaging"
)

// MaxGarments caps how many clothing items one try-on request may reference.
const MaxGarments = 5

var (
	// ErrCredentialsMissing indicates the render capability has no API key.
	ErrCredentialsMissing = errors.New("render: credentials missing")
	// ErrNoImage indicates the model response carried no inline image part.
	ErrNoImage = errors.New("render: no image returned")
	// ErrTooManyItems rejects try-on requests outside the 1..5 garment range.
	ErrTooManyItems = errors.New("render: garment count must be between 1 and 5")
)

const (
	defaultImageModel = "gemini-3-pro-image-preview"
	defaultTextModel  = "gemini-2.5-flash"
)

// Result is a rendered image payload.
type Result struct {
	Data     []byte
	MIMEType string
}

// DataURL renders the result as an inline data URL.
func (r Result) DataURL() string {
	return "data:" + r.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// ItemAttributes is the structured garment description extracted from a photo.
type ItemAttributes struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Gender   string   `json:"gender"`
	Tags     []string `json:"tags"`
	Color    string   `json:"color"`
	Material string   `json:"material"`
}

// Client wraps the generative image service for try-on composites, cutouts,
// attribute extraction and captions.
type Client struct {
	apiKey     string
	imageModel string
	textModel  string
	timeout    time.Duration
}

// NewClient constructs a render client. An empty API key yields a client whose
// calls fail with ErrCredentialsMissing so the app can still boot.
func NewClient(apiKey, imageModel, textModel string, timeout time.Duration) *Client {
	if strings.TrimSpace(imageModel) == "" {
		imageModel = defaultImageModel
	}
	if strings.TrimSpace(textModel) == "" {
		textModel = defaultTextModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		imageModel: strings.TrimPrefix(imageModel, "models/"),
		textModel:  strings.TrimPrefix(textModel, "models/"),
		timeout:    timeout,
	}
}

// TryOn renders a studio-style composite of the selfie wearing all garments.
// Garment order is passed through untouched so requests stay reproducible.
func (c *Client) TryOn(ctx context.Context, selfie imaging.Image, garments []imaging.Image, aspectRatio string) (Result, error) {
	if len(garments) < 1 || len(garments) > MaxGarments {
		return Result{}, ErrTooManyItems
	}

	prompt := fmt.Sprintf(`Act as a professional fashion photographer and AI stylist.
I am providing a selfie of a person and images of %d clothing items.
Generate a high-quality studio-style catalog image of this person wearing ALL the provided items.
The person should have the same face as in the selfie.
Style: premium e-commerce, professional lighting, consistent with luxury fashion brands.
Result should be front view, clean neutral background.
Avoid brand logos and text.`, len(garments))

	parts := make([]*genai.Part, 0, len(garments)+2)
	parts = append(parts, inlinePart(selfie))
	for _, garment := range garments {
		parts = append(parts, inlinePart(garment))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	if aspectRatio == "" {
		aspectRatio = "3:4"
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
	}

	return c.generateImage(ctx, parts, config)
}

// Cutout isolates the main clothing item in the photo on a clean background.
func (c *Client) Cutout(ctx context.Context, photo imaging.Image) (Result, error) {
	prompt := `You are an expert e-commerce catalog editor.
Remove the background and isolate ONLY the main clothing item in the photo.
Output a single product cutout centered in frame.
Requirements:
- transparent background (alpha) if possible
- front-facing view if possible
- no text, no logos, no watermark
- keep true colors
- clean edges, high-quality cutout
- output PNG
If multiple items are visible, choose the most prominent garment.`

	parts := []*genai.Part{inlinePart(photo), genai.NewPartFromText(prompt)}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: "1:1"},
	}

	return c.generateImage(ctx, parts, config)
}

// Attributes asks the text model to describe the garment as strict JSON.
func (c *Client) Attributes(ctx context.Context, photo imaging.Image, hintCategory, hintGender string) (ItemAttributes, error) {
	if c.apiKey == "" {
		return ItemAttributes{}, ErrCredentialsMissing
	}
	if hintCategory == "" {
		hintCategory = "none"
	}
	if hintGender == "" {
		hintGender = "none"
	}

	prompt := fmt.Sprintf(`Analyze the clothing item in the image.
Return ONLY strict JSON with keys:
{
  "title": string,
  "category": one of ["Верх","Низ","Платья","Обувь","Аксессуары","Верхняя одежда"],
  "gender": one of ["MALE","FEMALE","UNISEX"],
  "tags": string[],
  "color": string,
  "material": string
}
Use Russian for title/category/tags/color/material.
If unsure, make best guess.
Hints:
- hintCategory: %s
- hintGender: %s`, hintCategory, hintGender)

	text, err := c.generateText(ctx, []*genai.Part{inlinePart(photo), genai.NewPartFromText(prompt)})
	if err != nil {
		return ItemAttributes{}, err
	}
	return parseAttributes(text)
}

// DescribeLook produces a short caption for a rendered look. Captioning is
// non-critical: every failure, including missing credentials, degrades to an
// empty string so look creation is never blocked.
func (c *Client) DescribeLook(ctx context.Context, img imaging.Image, itemsSummary string) string {
	if c.apiKey == "" {
		return ""
	}

	prompt := "Write one short, upbeat caption (max 20 words) for this AI-generated outfit photo."
	if itemsSummary != "" {
		prompt += " The outfit includes: " + itemsSummary + "."
	}

	text, err := c.generateText(ctx, []*genai.Part{inlinePart(img), genai.NewPartFromText(prompt)})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (c *Client) generateImage(ctx context.Context, parts []*genai.Part, config *genai.GenerateContentConfig) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrCredentialsMissing
	}

	childCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := genai.NewClient(childCtx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return Result{}, fmt.Errorf("render: create client: %w", err)
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	resp, err := client.Models.GenerateContent(childCtx, c.imageModel, contents, config)
	if err != nil {
		return Result{}, fmt.Errorf("render: generate content: %w", err)
	}

	result, ok := firstInlineImage(resp)
	if !ok {
		return Result{}, ErrNoImage
	}
	return result, nil
}

func (c *Client) generateText(ctx context.Context, parts []*genai.Part) (string, error) {
	childCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := genai.NewClient(childCtx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return "", fmt.Errorf("render: create client: %w", err)
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	resp, err := client.Models.GenerateContent(childCtx, c.textModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("render: generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("render: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("render: candidate missing text")
	}
	return text, nil
}

// firstInlineImage scans candidate parts in order; the first part carrying
// inline image data wins. This extraction policy is deliberate and relied on
// by callers and tests.
func firstInlineImage(resp *genai.GenerateContentResponse) (Result, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if strings.TrimSpace(mime) == "" {
			mime = "image/png"
		}
		return Result{Data: part.InlineData.Data, MIMEType: mime}, true
	}
	return Result{}, false
}

func inlinePart(img imaging.Image) *genai.Part {
	return genai.NewPartFromBytes(img.Data, img.MIMEType)
}
