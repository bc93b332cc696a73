// Package render converts Notion block trees into Zotero-compatible HTML
// and computes stable structural hashes for change detection.
package render

import (
	"strings"

	"github.com/jomei/notionapi"

	"github.com/noterosync/notero/internal/notion"
)

// BlocksToHTML converts a list of Notion blocks to an HTML string.
//
// Consecutive bulleted_list_item and to_do blocks are wrapped in one <ul>,
// consecutive numbered_list_item blocks in one <ol>; any other block flushes
// the current list.
func BlocksToHTML(blocks []notionapi.Block) string {
	var parts []string
	var listBuffer []string
	listTag := ""

	flush := func() {
		if len(listBuffer) > 0 && listTag != "" {
			parts = append(parts, "<"+listTag+">"+strings.Join(listBuffer, "")+"</"+listTag+">")
		}
		listBuffer = nil
		listTag = ""
	}

	for _, block := range blocks {
		switch block.(type) {
		case *notionapi.BulletedListItemBlock, *notionapi.ToDoBlock:
			if listTag != "ul" {
				flush()
				listTag = "ul"
			}
			listBuffer = append(listBuffer, blockToHTML(block))
		case *notionapi.NumberedListItemBlock:
			if listTag != "ol" {
				flush()
				listTag = "ol"
			}
			listBuffer = append(listBuffer, blockToHTML(block))
		default:
			flush()
			if html := blockToHTML(block); html != "" {
				parts = append(parts, html)
			}
		}
	}
	flush()

	return strings.Join(parts, "\n")
}

// blockToHTML converts a single block according to the fixed dispatch table.
func blockToHTML(block notionapi.Block) string {
	content := RichTextToHTML(notion.BlockRichText(block))

	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return "<p>" + content + "</p>"

	case *notionapi.Heading1Block:
		return "<h1>" + content + "</h1>"

	case *notionapi.Heading2Block:
		return "<h2>" + content + "</h2>"

	case *notionapi.Heading3Block:
		return "<h3>" + content + "</h3>"

	case *notionapi.BulletedListItemBlock, *notionapi.NumberedListItemBlock:
		return "<li>" + content + "</li>"

	case *notionapi.ToDoBlock:
		checkbox := ""
		if b.ToDo.Checked {
			checkbox = "checked "
		}
		return `<li><input type="checkbox" ` + checkbox + "disabled />" + content + "</li>"

	case *notionapi.QuoteBlock:
		return "<blockquote>" + content + "</blockquote>"

	case *notionapi.CodeBlock:
		return "<pre><code>" + content + "</code></pre>"

	case *notionapi.DividerBlock:
		return "<hr />"

	case *notionapi.CalloutBlock:
		return "<p>" + content + "</p>"
	}

	// Unsupported block type: render as paragraph if it carries text.
	if content != "" {
		return "<p>" + content + "</p>"
	}
	return ""
}

// RichTextToHTML converts rich-text runs to HTML. Annotations nest in a
// fixed order, innermost to outermost: code, bold, italic, underline,
// strikethrough, hyperlink.
func RichTextToHTML(runs []notionapi.RichText) string {
	var sb strings.Builder

	for _, rt := range runs {
		text := escapeHTML(rt.PlainText)

		if a := rt.Annotations; a != nil {
			if a.Code {
				text = "<code>" + text + "</code>"
			}
			if a.Bold {
				text = "<strong>" + text + "</strong>"
			}
			if a.Italic {
				text = "<em>" + text + "</em>"
			}
			if a.Underline {
				text = "<u>" + text + "</u>"
			}
			if a.Strikethrough {
				text = "<s>" + text + "</s>"
			}
		}
		if rt.Href != "" {
			text = `<a href="` + escapeHTML(rt.Href) + `">` + text + "</a>"
		}

		sb.WriteString(text)
	}

	return sb.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
