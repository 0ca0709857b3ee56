package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/resilience"
	"github.com/sells-group/portfolio-advisor/pkg/notion"
)

// Notion catalog database property names.
const (
	NotionPropID          = "ID"
	NotionPropName        = "Name"
	NotionPropDescription = "Description"
	NotionPropFeatures    = "Key Features"
	NotionPropBenefits    = "Benefits"
	NotionPropPractice    = "Practice"
	NotionPropTags        = "Tags"
	NotionPropStatus      = "Status"

	// NotionActiveStatus marks offerings that are currently sold.
	NotionActiveStatus = "Active"
)

// LoadCatalogFromNotion reads the active offerings from a Notion database in
// the database's order. Pages missing a name are skipped.
func LoadCatalogFromNotion(ctx context.Context, c notion.Client, dbID string, policy resilience.Policy) ([]model.Offering, error) {
	if dbID == "" {
		return nil, eris.New("registry: notion catalog database id is required")
	}

	pages, err := resilience.DoVal(ctx, policy, func(ctx context.Context) ([]notionapi.Page, error) {
		return notion.QueryAll(ctx, c, dbID, notion.StatusFilter(NotionPropStatus, NotionActiveStatus))
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: load notion catalog")
	}

	offerings := make([]model.Offering, 0, len(pages))
	for _, p := range pages {
		o := OfferingFromPage(p)
		if err := o.Validate(); err != nil {
			zap.L().Warn("registry: skipping notion page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		if !o.Matchable() {
			zap.L().Warn("registry: notion offering has no features or benefits",
				zap.String("page_id", string(p.ID)),
				zap.String("id", o.ID),
			)
		}
		offerings = append(offerings, o)
	}

	zap.L().Info("registry: loaded notion catalog",
		zap.String("database_id", dbID),
		zap.Int("pages", len(pages)),
		zap.Int("offerings", len(offerings)),
	)
	return offerings, nil
}

// OfferingFromPage maps a catalog page to an Offering. The page id stands in
// when the ID property is empty.
func OfferingFromPage(p notionapi.Page) model.Offering {
	id := notion.Text(p, NotionPropID)
	if id == "" {
		id = string(p.ID)
	}
	return model.Offering{
		ID:          id,
		Name:        notion.Text(p, NotionPropName),
		Description: notion.Text(p, NotionPropDescription),
		KeyFeatures: nonNil(notion.Lines(p, NotionPropFeatures)),
		Benefits:    nonNil(notion.Lines(p, NotionPropBenefits)),
		Practice:    notion.Select(p, NotionPropPractice),
		Tags:        nonNil(notion.MultiSelect(p, NotionPropTags)),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
