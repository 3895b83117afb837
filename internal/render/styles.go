package render

import "strings"

// StyleVariant is one deterministic title treatment from the style pack
type StyleVariant struct {
	Key   string
	Title string
}

// StyleVariants derives the four thumbnail title treatments from one
// input title.
func StyleVariants(title string) []StyleVariant {
	return []StyleVariant{
		{Key: "S1", Title: title},
		{Key: "S2", Title: strings.ToUpper(title) + " 🔥"},
		{Key: "S3", Title: "💡 " + title},
		{Key: "S4", Title: title + " 🚀"},
	}
}
