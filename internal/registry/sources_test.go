package registry

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/resilience"
	"github.com/sells-group/portfolio-advisor/pkg/notion/mocks"
	"github.com/sells-group/portfolio-advisor/pkg/salesforce"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testPolicy() resilience.Policy {
	return resilience.Policy{
		Name:           "test",
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s}}
}

func offeringPage(pageID, id, name, features, benefits string) notionapi.Page {
	props := notionapi.Properties{
		NotionPropName:     &notionapi.TitleProperty{Title: richText(name)},
		NotionPropFeatures: &notionapi.RichTextProperty{RichText: richText(features)},
		NotionPropBenefits: &notionapi.RichTextProperty{RichText: richText(benefits)},
		NotionPropPractice: &notionapi.SelectProperty{Select: notionapi.Option{Name: "Cloud"}},
		NotionPropTags: &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{
			{Name: "migration"}, {Name: "cloud"},
		}},
	}
	if id != "" {
		props[NotionPropID] = &notionapi.RichTextProperty{RichText: richText(id)}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func TestLoadCatalogFromNotion(t *testing.T) {
	ctx := context.Background()
	mc := mocks.NewMockClient(t)
	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		f, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && f.Property == NotionPropStatus && f.Status.Equals == NotionActiveStatus
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{
			offeringPage("page-1", "s1", "Application Modernization", "- legacy modernization\n- system integration", "Lower costs"),
			offeringPage("page-2", "", "Cloud Migration", "lift and shift", "Faster cutover"),
			offeringPage("page-3", "s3", "", "orphan", ""),
		},
	}, nil).Once()

	got, err := LoadCatalogFromNotion(ctx, mc, "db-1", testPolicy())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, []string{"legacy modernization", "system integration"}, got[0].KeyFeatures)
	assert.Equal(t, []string{"Lower costs"}, got[0].Benefits)
	assert.Equal(t, "Cloud", got[0].Practice)
	assert.Equal(t, []string{"migration", "cloud"}, got[0].Tags)
	assert.Equal(t, "page-2", got[1].ID, "page id stands in for a missing ID property")
}

func TestLoadCatalogFromNotion_KeepsUnmatchable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	ctx := context.Background()
	mc := mocks.NewMockClient(t)
	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{
			offeringPage("page-1", "s1", "Advisory Retainer", "", ""),
		},
	}, nil).Once()

	got, err := LoadCatalogFromNotion(ctx, mc, "db-1", testPolicy())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Matchable())

	warned := logs.FilterMessage("registry: notion offering has no features or benefits").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "page-1", warned[0].ContextMap()["page_id"])
}

func TestLoadCatalogFromNotion_RetriesTransient(t *testing.T) {
	ctx := context.Background()
	mc := mocks.NewMockClient(t)
	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("notion: 503"), 503)).Once()
	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{offeringPage("page-1", "s1", "Application Modernization", "x", "y")},
		}, nil).Once()

	got, err := LoadCatalogFromNotion(ctx, mc, "db-1", testPolicy())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLoadCatalogFromNotion_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := LoadCatalogFromNotion(ctx, mocks.NewMockClient(t), "", testPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database id is required")

	mc := mocks.NewMockClient(t)
	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).
		Return(nil, errors.New("object_not_found")).Once()
	_, err = LoadCatalogFromNotion(ctx, mc, "db-1", testPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load notion catalog")
}

type mockSalesforce struct {
	mock.Mock
}

func (m *mockSalesforce) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

func (m *mockSalesforce) onAccount(accounts []salesforce.Account) {
	m.On("Query", mock.Anything, mock.MatchedBy(func(soql string) bool {
		return strings.Contains(soql, "FROM Account")
	}), mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(2).(*[]salesforce.Account) = accounts
	}).Return(nil).Once()
}

func (m *mockSalesforce) onSignals(records []salesforce.SignalRecord) {
	m.On("Query", mock.Anything, mock.MatchedBy(func(soql string) bool {
		return strings.Contains(soql, "FROM "+salesforce.DefaultSignalObject)
	}), mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(2).(*[]salesforce.SignalRecord) = records
	}).Return(nil).Once()
}

func TestLoadInsightsFromSalesforce(t *testing.T) {
	sf := new(mockSalesforce)
	sf.onAccount([]salesforce.Account{{ID: "001", Name: "Acme Manufacturing", SentimentScore: 71.6}})
	sf.onSignals([]salesforce.SignalRecord{
		{ID: "a1", Name: "Legacy System Integration Challenges", Confidence: 88.7, Kind: "challenge"},
		{ID: "a2", Name: "Data Migration Complexity", Confidence: 76},
		{ID: "a3", Name: "Out of range", Confidence: 140},
		{ID: "a4", Name: "Strange kind", Confidence: 50, Kind: "rumor"},
		{ID: "a5", Name: "Legacy System Integration Challenges", Confidence: 20},
		{ID: "a6", Name: "Q3 budget approved", Confidence: 60, Kind: "Budget"},
	})

	set, err := LoadInsightsFromSalesforce(context.Background(), sf, "Acme Manufacturing", "", testPolicy())
	require.NoError(t, err)
	assert.Equal(t, "Acme Manufacturing", set.ClientName)
	assert.Equal(t, 72, set.Sentiment)
	assert.Equal(t, []string{
		"Legacy System Integration Challenges",
		"Data Migration Complexity",
		"Q3 budget approved",
	}, set.SignalNames())
	assert.Equal(t, 89, set.Signals[0].Confidence)
	assert.Equal(t, model.SignalChallenge, set.Signals[1].Kind)
	assert.Equal(t, model.SignalBudget, set.Signals[2].Kind)
	sf.AssertExpectations(t)
}

func TestLoadInsightsFromSalesforce_UnknownAccount(t *testing.T) {
	sf := new(mockSalesforce)
	sf.onAccount(nil)

	_, err := LoadInsightsFromSalesforce(context.Background(), sf, "Nobody", "", testPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `account "Nobody" not found`)
	sf.AssertExpectations(t)
}

func TestLoadInsightsFromSalesforce_RequiresAccount(t *testing.T) {
	_, err := LoadInsightsFromSalesforce(context.Background(), new(mockSalesforce), "", "", testPolicy())
	require.Error(t, err)
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0, clampPercent(-12))
	assert.Equal(t, 100, clampPercent(180))
	assert.Equal(t, 50, clampPercent(49.5))
	assert.Equal(t, 0, clampPercent(math.NaN()))
	assert.Equal(t, 100, clampPercent(math.Inf(1)))
	assert.Equal(t, 0, clampPercent(math.Inf(-1)))
	assert.Equal(t, 100, clampPercent(1e300))
	assert.Equal(t, 0, clampPercent(-1e300))
}
