package workspace

import (
	"context"
	"iter"
)

// ListContent walks the whole workspace tree lazily: top-level search
// results page by page, and for every page its block children page by page.
// The page itself is yielded before its blocks, and all of a page's blocks
// are yielded before the outer cursor advances. Every item existing at call
// time is visited exactly once; ordering is stable within one call only.
//
// The returned sequence is restartable: each range starts a fresh walk.
func (c *Client) ListContent(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		cursor := ""

		for {
			page, err := c.searchPage(ctx, cursor)
			if err != nil {
				yield(Item{}, err)
				return
			}

			for _, item := range page.Results {
				if !yield(item, nil) {
					return
				}
				if item.Object == ObjectPage {
					if !c.walkBlocks(ctx, item.ID, yield) {
						return
					}
				}
			}

			if !page.HasMore {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// walkBlocks yields every child block of a page. Returns false when the
// walk should stop, either because the consumer stopped or a fetch failed.
func (c *Client) walkBlocks(ctx context.Context, pageID string, yield func(Item, error) bool) bool {
	cursor := ""

	for {
		page, err := c.blockChildrenPage(ctx, pageID, cursor)
		if err != nil {
			yield(Item{}, err)
			return false
		}

		for _, block := range page.Results {
			if !yield(block, nil) {
				return false
			}
		}

		if !page.HasMore {
			return true
		}
		cursor = page.NextCursor
	}
}
