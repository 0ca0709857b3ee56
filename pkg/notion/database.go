package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database query, following cursors. The
// filter and sorts of base are repeated on each request.
func QueryAll(ctx context.Context, c Client, dbID string, base *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if base != nil {
			req.Filter = base.Filter
			req.Sorts = base.Sorts
			req.PageSize = base.PageSize
		}
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// StatusFilter builds a request matching pages whose status property equals
// value.
func StatusFilter(property, value string) *notionapi.DatabaseQueryRequest {
	return &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			Status:   &notionapi.StatusFilterCondition{Equals: value},
		},
	}
}

// PlainText concatenates the plain_text of a rich text run.
func PlainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

// Text reads a title or rich_text property as plain text.
func Text(p notionapi.Page, name string) string {
	switch prop := p.Properties[name].(type) {
	case *notionapi.TitleProperty:
		return strings.TrimSpace(PlainText(prop.Title))
	case *notionapi.RichTextProperty:
		return strings.TrimSpace(PlainText(prop.RichText))
	}
	return ""
}

// Select reads a select or status property's option name.
func Select(p notionapi.Page, name string) string {
	switch prop := p.Properties[name].(type) {
	case *notionapi.SelectProperty:
		return prop.Select.Name
	case *notionapi.StatusProperty:
		return prop.Status.Name
	}
	return ""
}

// MultiSelect reads a multi_select property's option names in order.
func MultiSelect(p notionapi.Page, name string) []string {
	prop, ok := p.Properties[name].(*notionapi.MultiSelectProperty)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(prop.MultiSelect))
	for _, opt := range prop.MultiSelect {
		out = append(out, opt.Name)
	}
	return out
}

// Lines reads a text property and splits it into trimmed, non-empty lines.
// Catalog editors keep one feature or benefit per line.
func Lines(p notionapi.Page, name string) []string {
	var out []string
	for _, line := range strings.Split(Text(p, name), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
