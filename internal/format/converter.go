// Package format converts HTML mail bodies to readable text.
package format

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Converter handles document format conversions.
type Converter struct{}

// HTML2Text converts an HTML body to Markdown-flavoured plain text.
func (c Converter) HTML2Text(html string) (string, error) {
	simplified := UnwrapLayoutTables([]byte(html))

	md, err := htmltomarkdown.ConvertString(string(simplified))
	if err != nil {
		return "", fmt.Errorf("htmltomarkdown.ConvertString failed: %w", err)
	}

	return strings.TrimSpace(md), nil
}
