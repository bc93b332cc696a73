package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
)

// GetBlockChildren retrieves the direct children of a block or page,
// handling pagination.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]notionapi.Block, error) {
	var blocks []notionapi.Block
	var cursor notionapi.Cursor

	for {
		if err := c.wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}

		resp, err := c.api.Block.GetChildren(ctx, notionapi.BlockID(blockID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return nil, fmt.Errorf("get children: %w", err)
		}

		blocks = append(blocks, resp.Results...)

		if !resp.HasMore {
			return blocks, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// GetAllBlocks retrieves the full block tree under a page, recursively
// populating each block's children.
func (c *Client) GetAllBlocks(ctx context.Context, pageID string) ([]notionapi.Block, error) {
	blocks, err := c.GetBlockChildren(ctx, pageID)
	if err != nil {
		return nil, err
	}

	for i, block := range blocks {
		if !BlockHasChildren(block) {
			continue
		}
		id := BlockID(block)
		if id == "" {
			continue
		}
		children, err := c.GetAllBlocks(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get nested blocks: %w", err)
		}
		blocks[i] = SetBlockChildren(block, children)
	}

	return blocks, nil
}

// BlockID gets the ID from a block interface.
func BlockID(block notionapi.Block) string {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return string(b.ID)
	case *notionapi.Heading1Block:
		return string(b.ID)
	case *notionapi.Heading2Block:
		return string(b.ID)
	case *notionapi.Heading3Block:
		return string(b.ID)
	case *notionapi.BulletedListItemBlock:
		return string(b.ID)
	case *notionapi.NumberedListItemBlock:
		return string(b.ID)
	case *notionapi.ToDoBlock:
		return string(b.ID)
	case *notionapi.ToggleBlock:
		return string(b.ID)
	case *notionapi.QuoteBlock:
		return string(b.ID)
	case *notionapi.CalloutBlock:
		return string(b.ID)
	case *notionapi.CodeBlock:
		return string(b.ID)
	case *notionapi.DividerBlock:
		return string(b.ID)
	default:
		return ""
	}
}

// BlockHasChildren reports whether a block has child blocks.
func BlockHasChildren(block notionapi.Block) bool {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return b.HasChildren
	case *notionapi.BulletedListItemBlock:
		return b.HasChildren
	case *notionapi.NumberedListItemBlock:
		return b.HasChildren
	case *notionapi.ToDoBlock:
		return b.HasChildren
	case *notionapi.ToggleBlock:
		return b.HasChildren
	case *notionapi.QuoteBlock:
		return b.HasChildren
	case *notionapi.CalloutBlock:
		return b.HasChildren
	default:
		return false
	}
}

// BlockChildren returns a block's pre-fetched children, or nil when the
// block was fetched without recursive descent.
func BlockChildren(block notionapi.Block) []notionapi.Block {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return b.Paragraph.Children
	case *notionapi.BulletedListItemBlock:
		return b.BulletedListItem.Children
	case *notionapi.NumberedListItemBlock:
		return b.NumberedListItem.Children
	case *notionapi.ToDoBlock:
		return b.ToDo.Children
	case *notionapi.ToggleBlock:
		return b.Toggle.Children
	case *notionapi.QuoteBlock:
		return b.Quote.Children
	case *notionapi.CalloutBlock:
		return b.Callout.Children
	default:
		return nil
	}
}

// SetBlockChildren sets children on a block that supports them.
func SetBlockChildren(block notionapi.Block, children []notionapi.Block) notionapi.Block {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		b.Paragraph.Children = children
		return b
	case *notionapi.BulletedListItemBlock:
		b.BulletedListItem.Children = children
		return b
	case *notionapi.NumberedListItemBlock:
		b.NumberedListItem.Children = children
		return b
	case *notionapi.ToDoBlock:
		b.ToDo.Children = children
		return b
	case *notionapi.ToggleBlock:
		b.Toggle.Children = children
		return b
	case *notionapi.QuoteBlock:
		b.Quote.Children = children
		return b
	case *notionapi.CalloutBlock:
		b.Callout.Children = children
		return b
	default:
		return block
	}
}

// BlockRichText returns the rich-text runs carried by a block's content.
func BlockRichText(block notionapi.Block) []notionapi.RichText {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return b.Paragraph.RichText
	case *notionapi.Heading1Block:
		return b.Heading1.RichText
	case *notionapi.Heading2Block:
		return b.Heading2.RichText
	case *notionapi.Heading3Block:
		return b.Heading3.RichText
	case *notionapi.BulletedListItemBlock:
		return b.BulletedListItem.RichText
	case *notionapi.NumberedListItemBlock:
		return b.NumberedListItem.RichText
	case *notionapi.ToDoBlock:
		return b.ToDo.RichText
	case *notionapi.QuoteBlock:
		return b.Quote.RichText
	case *notionapi.CalloutBlock:
		return b.Callout.RichText
	case *notionapi.CodeBlock:
		return b.Code.RichText
	case *notionapi.ToggleBlock:
		return b.Toggle.RichText
	default:
		return nil
	}
}

// BlockPlainText concatenates the plain text of a block's rich-text runs.
func BlockPlainText(block notionapi.Block) string {
	var sb strings.Builder
	for _, rt := range BlockRichText(block) {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}

// IsHeading reports whether a block is a heading of any level.
func IsHeading(block notionapi.Block) bool {
	switch block.(type) {
	case *notionapi.Heading1Block, *notionapi.Heading2Block, *notionapi.Heading3Block:
		return true
	default:
		return false
	}
}
