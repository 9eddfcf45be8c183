package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll walks a database query through Notion's cursor pagination and
// returns every page in order. A nil req queries the whole database; any
// filter, sort, or page size on req is carried to every request.
func QueryAll(ctx context.Context, c Client, dbID string, req *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var query notionapi.DatabaseQueryRequest
	if req != nil {
		query = *req
	}

	var all []notionapi.Page
	for {
		resp, err := c.QueryDatabase(ctx, dbID, &query)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		query.StartCursor = resp.NextCursor
	}
}
