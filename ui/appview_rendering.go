package ui

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"seekchat/config"
	"seekchat/storage"
)

// Pre-compiled regex patterns
var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

const streamCursor = "▋"

type markdownCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMarkdownCache() *markdownCache {
	return &markdownCache{entries: make(map[string]string)}
}

func (c *markdownCache) render(content string, width int) string {
	cacheKey := fmt.Sprintf("%d\x00%s", width, content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if rendered, ok := c.entries[cacheKey]; ok {
		return rendered
	}
	rendered := renderMarkdown(content, width)
	c.entries[cacheKey] = rendered
	return rendered
}

// updateViewportContent redraws the current conversation. The message being
// streamed is shown raw with a cursor; everything else as markdown.
func (a *AppView) updateViewportContent(gotoBottom bool) {
	key, conv := a.dataModel.CurrentConversation()

	if len(conv.Messages) == 0 {
		a.viewport.SetContent(DimStyle.Render("No messages yet. Start chatting!"))
		return
	}

	busy := a.dataModel.Chat.Busy(key)
	last := len(conv.Messages) - 1

	var content strings.Builder
	for i, msg := range conv.Messages {
		prefix := ""
		if i == a.selectedMsg {
			prefix = HighlightStyle.Render(">>> ")
		}
		timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

		if msg.Role == storage.RoleUser {
			content.WriteString(formatUserMessage(prefix, timestamp, UserStyle.Render("You"), msg.Content))
			continue
		}

		var body string
		switch {
		case busy && i == last && msg.Content == "":
			body = a.loadingSpinner.View()
		case busy && i == last:
			body = msg.Content + streamCursor
		default:
			body = a.renderCache.render(msg.Content, a.mainWidth())
		}
		content.WriteString(fmt.Sprintf("%s%s %s\n%s\n\n", prefix, timestamp, AssistantStyle.Render("Assistant"), body))
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func formatUserMessage(prefix, timestamp, role, content string) string {
	bar := UserStyle.Render("┃")

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s%s %s %s\n", prefix, bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")

	return result.String()
}

func renderMarkdown(content string, width int) string {
	if width < 24 {
		width = 24
	}

	content = preprocessLinks(content)

	// Autolink stays off so terminals can detect URLs themselves
	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	config.DebugLog.Debug("markdown rendered", "length", len(content), "width", width)

	return postProcessMarkdown(strings.TrimRight(string(rendered), "\n"), width)
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = fixInlineCode(rendered)
	rendered = colorURLs(rendered)
	return frameCodeBlocks(rendered, width)
}

// preprocessLinks turns [text](url) into the bare url.
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

// fixInlineCode swaps the renderer's blue-background inline code for red text.
func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		// code block lines carry the ┃ gutter
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks replaces the renderer's ┃ gutter with a top and bottom rule.
func frameCodeBlocks(s string, width int) string {
	darkGray := "\x1b[90m"
	reset := "\x1b[0m"
	ruleWidth := width - 4
	if ruleWidth < 8 {
		ruleWidth = 8
	}

	topRule := func() string {
		label := "[code]"
		left := (ruleWidth - len(label)) / 2
		right := ruleWidth - len(label) - left
		return darkGray + strings.Repeat("━", left) + reset + label + darkGray + strings.Repeat("━", right) + reset
	}
	bottomRule := darkGray + strings.Repeat("━", ruleWidth) + reset

	var result []string
	inCodeBlock := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, "┃") {
			if !inCodeBlock {
				inCodeBlock = true
				result = append(result, "", topRule())
			}
			result = append(result, stripCodeBlockPrefix(line))
			continue
		}
		if inCodeBlock {
			result = append(result, bottomRule, "")
			inCodeBlock = false
		}
		result = append(result, line)
	}
	if inCodeBlock {
		result = append(result, bottomRule)
	}

	return strings.Join(result, "\n")
}

// stripCodeBlockPrefix drops everything up to and including the ┃ gutter and
// the single space after it.
func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, "┃")
	if idx < 0 {
		return line
	}
	rest := line[idx+len("┃"):]
	if reset := strings.Index(rest, "\x1b[0m"); reset == 0 {
		rest = rest[len("\x1b[0m"):]
	}
	return strings.TrimPrefix(rest, " ")
}

// stripANSI removes ANSI escape codes for width calculations
func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
