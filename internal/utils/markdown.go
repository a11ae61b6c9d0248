package utils

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	linkPattern    = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern     = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	input = urlPattern.ReplaceAllString(input, "")

	return input
}

// MarkdownToText flattens markdown into a single line of plain prose.
// Forum bodies arrive as markdown; prompts want readable text.
func MarkdownToText(input string) string {
	input = RemoveLinks(input)

	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := htmlTagPattern.ReplaceAllString(string(output), " ")
	plain = html.UnescapeString(plain)

	return strings.Join(strings.Fields(plain), " ")
}
