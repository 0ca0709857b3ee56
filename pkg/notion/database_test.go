package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-advisor/pkg/notion/mocks"
)

func TestQueryAll_FollowsCursor(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()
	base := StatusFilter("Status", "Active")

	mc.On("QueryDatabase", ctx, "catalog-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == "" && req.Filter != nil
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{{ID: "p1"}, {ID: "p2"}},
		HasMore:    true,
		NextCursor: "c2",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "catalog-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return req.StartCursor == "c2" && ok && pf.Status.Equals == "Active"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "p3"}},
	}, nil).Once()

	pages, err := QueryAll(ctx, mc, "catalog-db", base)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, notionapi.ObjectID("p3"), pages[2].ID)
}

func TestQueryAll_Error(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()
	mc.On("QueryDatabase", ctx, "db", mock.Anything).Return(nil, assert.AnError).Once()

	pages, err := QueryAll(ctx, mc, "db", nil)
	require.Error(t, err)
	assert.Nil(t, pages)
	assert.Contains(t, err.Error(), "notion: query all")
}

func testPage() notionapi.Page {
	return notionapi.Page{
		ID: "page-1",
		Properties: notionapi.Properties{
			"Name": &notionapi.TitleProperty{Title: []notionapi.RichText{
				{PlainText: "Cloud "}, {PlainText: "Migration"},
			}},
			"Benefits": &notionapi.RichTextProperty{RichText: []notionapi.RichText{
				{PlainText: "- Lower run costs\n\n• Faster releases \n"},
			}},
			"Practice": &notionapi.SelectProperty{Select: notionapi.Option{Name: "Cloud"}},
			"Status":   &notionapi.StatusProperty{Status: notionapi.Status{Name: "Active"}},
			"Tags": &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{
				{Name: "cloud"}, {Name: "migration"},
			}},
		},
	}
}

func TestPropertyReaders(t *testing.T) {
	p := testPage()
	assert.Equal(t, "Cloud Migration", Text(p, "Name"))
	assert.Equal(t, "Cloud", Select(p, "Practice"))
	assert.Equal(t, "Active", Select(p, "Status"))
	assert.Equal(t, []string{"cloud", "migration"}, MultiSelect(p, "Tags"))
	assert.Equal(t, []string{"Lower run costs", "Faster releases"}, Lines(p, "Benefits"))

	assert.Empty(t, Text(p, "Missing"))
	assert.Empty(t, Select(p, "Name"))
	assert.Nil(t, MultiSelect(p, "Name"))
	assert.Empty(t, Lines(p, "Missing"))
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient("secret", WithRateLimit(10)).(*notionClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 10, c.limiter.Burst())

	c = NewClient("secret", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
}
