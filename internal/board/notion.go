package board

import (
	"context"
	"sort"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/model"
	"github.com/cardmap/cardmap-cli/pkg/notion"
)

// PropertyMap names the Notion database properties the source reads and
// writes. Zero-value fields fall back to the defaults.
type PropertyMap struct {
	Title     string
	Desc      string
	Category  string
	Labels    string
	Done      string
	Template  string
	Latitude  string
	Longitude string
}

// DefaultPropertyMap is the schema the source expects when the config
// does not override property names.
func DefaultPropertyMap() PropertyMap {
	return PropertyMap{
		Title:     "Name",
		Desc:      "Description",
		Category:  "Category",
		Labels:    "Labels",
		Done:      "Done",
		Template:  "Template",
		Latitude:  "Latitude",
		Longitude: "Longitude",
	}
}

func (pm PropertyMap) withDefaults() PropertyMap {
	def := DefaultPropertyMap()
	if pm.Title == "" {
		pm.Title = def.Title
	}
	if pm.Desc == "" {
		pm.Desc = def.Desc
	}
	if pm.Category == "" {
		pm.Category = def.Category
	}
	if pm.Labels == "" {
		pm.Labels = def.Labels
	}
	if pm.Done == "" {
		pm.Done = def.Done
	}
	if pm.Template == "" {
		pm.Template = def.Template
	}
	if pm.Latitude == "" {
		pm.Latitude = def.Latitude
	}
	if pm.Longitude == "" {
		pm.Longitude = def.Longitude
	}
	return pm
}

// NotionSource reads a Notion database. Pages become items and the
// distinct values of the category select property become groups.
type NotionSource struct {
	client notion.Client
	props  PropertyMap
}

// NewNotionSource creates a source backed by the given Notion client.
func NewNotionSource(client notion.Client, props PropertyMap) *NotionSource {
	return &NotionSource{client: client, props: props.withDefaults()}
}

// Load queries every page of the database and maps pages into items.
// The boardID is the Notion database ID.
func (s *NotionSource) Load(ctx context.Context, boardID string) (*Snapshot, error) {
	pages, err := notion.QueryAll(ctx, s.client, boardID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "querying database")
	}

	snap := &Snapshot{BoardID: boardID}
	categories := make(map[string]bool)
	for _, p := range pages {
		item := s.pageToItem(p)
		snap.Items = append(snap.Items, item)
		if item.CategoryID != "" && !categories[item.CategoryID] {
			categories[item.CategoryID] = true
		}
	}

	// Groups follow the distinct category values, sorted for a stable
	// order since Notion selects carry none.
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		snap.Groups = append(snap.Groups, model.Group{
			ID:             name,
			Name:           name,
			CategoryIDs:    []string{name},
			DefaultVisible: true,
		})
	}

	zap.L().Debug("loaded notion database",
		zap.String("database_id", boardID),
		zap.Int("groups", len(snap.Groups)),
		zap.Int("items", len(snap.Items)))

	return snap, nil
}

// SaveCoordinates writes the latitude and longitude number properties
// on the page.
func (s *NotionSource) SaveCoordinates(ctx context.Context, itemID string, coords model.Coordinates) error {
	_, err := s.client.UpdatePage(ctx, itemID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			s.props.Latitude: notionapi.NumberProperty{
				Number: coords.Lat,
			},
			s.props.Longitude: notionapi.NumberProperty{
				Number: coords.Lng,
			},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "updating page %s", itemID)
	}
	return nil
}

func (s *NotionSource) pageToItem(p notionapi.Page) model.Item {
	item := model.Item{
		ID: string(p.ID),
	}

	if prop, ok := p.Properties[s.props.Title]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			item.Name = plainText(tp.Title)
		}
	}

	if prop, ok := p.Properties[s.props.Desc]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			item.Desc = plainText(rtp.RichText)
		}
	}

	if prop, ok := p.Properties[s.props.Category]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			item.CategoryID = sp.Select.Name
		}
	}

	if prop, ok := p.Properties[s.props.Labels]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				item.Labels = append(item.Labels, model.Label{
					ID:    string(opt.ID),
					Name:  opt.Name,
					Color: string(opt.Color),
				})
			}
		}
	}

	if prop, ok := p.Properties[s.props.Done]; ok {
		if cp, ok := prop.(*notionapi.CheckboxProperty); ok {
			item.Completed = cp.Checkbox
		}
	}

	if prop, ok := p.Properties[s.props.Template]; ok {
		if cp, ok := prop.(*notionapi.CheckboxProperty); ok {
			item.Template = cp.Checkbox
		}
	}

	var lat, lng float64
	if prop, ok := p.Properties[s.props.Latitude]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			lat = np.Number
		}
	}
	if prop, ok := p.Properties[s.props.Longitude]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			lng = np.Number
		}
	}
	// The API reports cleared numbers as zero, so an exact (0,0) pair
	// is treated as unset. That point is in the Gulf of Guinea and not
	// a plausible stored location.
	if lat != 0 || lng != 0 {
		coords, err := model.NewCoordinates(lat, lng)
		if err != nil {
			zap.L().Warn("page has out-of-range coordinates",
				zap.String("page_id", string(p.ID)),
				zap.Error(err))
		} else {
			item.Coords = &coords
		}
	}

	return item
}

func plainText(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}
