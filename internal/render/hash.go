package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/noterosync/notero/internal/notion"
)

// blockProjection is the content-relevant view of one block. Ids, timestamps
// and other metadata are deliberately excluded so identical content hashes
// identically across fetches.
// Fields are declared in sorted key order so the serialized form matches a
// sorted-keys encoding.
type blockProjection struct {
	Checked  *bool                `json:"checked"`
	RichText []notionapi.RichText `json:"rich_text"`
	Type     string               `json:"type"`
}

// BlocksHash computes the SHA-256 hex digest of the canonical structural
// projection of a block list.
func BlocksHash(blocks []notionapi.Block) (string, error) {
	projections := make([]blockProjection, 0, len(blocks))
	for _, block := range blocks {
		p := blockProjection{
			RichText: notion.BlockRichText(block),
			Type:     string(block.GetType()),
		}
		if todo, ok := block.(*notionapi.ToDoBlock); ok {
			checked := todo.ToDo.Checked
			p.Checked = &checked
		}
		projections = append(projections, p)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(projections); err != nil {
		return "", fmt.Errorf("serialize block projection: %w", err)
	}

	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:]), nil
}
