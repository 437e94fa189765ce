package render

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseAttributes decodes the model's JSON reply, tolerating prose or code
// fences around the object by slicing between the outermost braces.
func parseAttributes(text string) (ItemAttributes, error) {
	var attrs ItemAttributes
	if err := json.Unmarshal([]byte(text), &attrs); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			if err := json.Unmarshal([]byte(text[start:end+1]), &attrs); err != nil {
				return ItemAttributes{}, fmt.Errorf("render: parse attributes: %w", err)
			}
		} else {
			return ItemAttributes{}, fmt.Errorf("render: parse attributes: %w", err)
		}
	}

	if attrs.Tags == nil {
		attrs.Tags = []string{}
	}
	return attrs, nil
}

// FallbackAttributes fills a best-guess record when extraction fails, keeping
// the upload flow usable.
func FallbackAttributes(hintCategory, hintGender string) ItemAttributes {
	category := hintCategory
	if category == "" {
		category = "Верх"
	}
	gender := hintGender
	if gender == "" {
		gender = "UNISEX"
	}
	return ItemAttributes{
		Title:    "Моя вещь",
		Category: category,
		Gender:   gender,
		Tags:     []string{},
		Color:    "неизвестно",
		Material: "неизвестно",
	}
}
