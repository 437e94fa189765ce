package client

// SampleCatalog supplies placeholder catalog products for the empty-wardrobe
// state, so the try-on flow is usable before anything is uploaded. Image
// references are origin-relative and should be passed through WithAPIOrigin.
func SampleCatalog() []Item {
	return []Item{
		{
			ID:         "catalog-tee-white",
			Title:      "Белая футболка",
			Category:   "Верх",
			Gender:     "UNISEX",
			Tags:       []string{"базовый", "хлопок"},
			Color:      "белый",
			Price:      1990,
			Currency:   "RUB",
			Sizes:      []string{"S", "M", "L", "XL"},
			StoreID:    "demo-store",
			SourceType: "catalog",
			Images:     []string{"/media/catalog/tee-white.jpg"},
		},
		{
			ID:         "catalog-jeans-blue",
			Title:      "Синие джинсы",
			Category:   "Низ",
			Gender:     "UNISEX",
			Tags:       []string{"деним"},
			Color:      "синий",
			Price:      4990,
			Currency:   "RUB",
			Sizes:      []string{"S", "M", "L"},
			StoreID:    "demo-store",
			SourceType: "catalog",
			Images:     []string{"/media/catalog/jeans-blue.jpg"},
		},
		{
			ID:         "catalog-dress-black",
			Title:      "Чёрное платье",
			Category:   "Платья",
			Gender:     "FEMALE",
			Tags:       []string{"вечернее"},
			Color:      "чёрный",
			Price:      7990,
			Currency:   "RUB",
			Sizes:      []string{"XS", "S", "M"},
			StoreID:    "demo-store",
			SourceType: "catalog",
			Images:     []string{"/media/catalog/dress-black.jpg"},
		},
		{
			ID:         "catalog-sneakers-white",
			Title:      "Белые кроссовки",
			Category:   "Обувь",
			Gender:     "UNISEX",
			Tags:       []string{"спорт"},
			Color:      "белый",
			Price:      8990,
			Currency:   "RUB",
			Sizes:      []string{"38", "39", "40", "41", "42"},
			StoreID:    "demo-store",
			SourceType: "catalog",
			Images:     []string{"/media/catalog/sneakers-white.jpg"},
		},
	}
}
