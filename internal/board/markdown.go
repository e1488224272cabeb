package board

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

type markdownConverter struct {
	conv *md.Converter
}

func newMarkdownConverter() *markdownConverter {
	conv := md.NewConverter("", true, nil)
	conv.Remove("script", "style", "noscript")
	return &markdownConverter{conv: conv}
}

// Convert renders an HTML fragment as Markdown. Conversion failures fall back
// to the fragment's plain text.
func (m *markdownConverter) Convert(html, fallback string) string {
	out, err := m.conv.ConvertString(html)
	if err != nil {
		return strings.TrimSpace(fallback)
	}
	return strings.TrimSpace(out)
}
