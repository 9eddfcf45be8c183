package board

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardmap/cardmap-cli/internal/model"
	"github.com/cardmap/cardmap-cli/pkg/trello"
)

// TrelloSource reads a Trello board. Each open list becomes a group and
// each open card becomes an item assigned to its list.
type TrelloSource struct {
	client trello.Client
}

// NewTrelloSource creates a source backed by the given Trello client.
func NewTrelloSource(client trello.Client) *TrelloSource {
	return &TrelloSource{client: client}
}

// Load fetches lists and cards concurrently and maps them into a
// snapshot. Closed lists and archived cards are dropped.
func (s *TrelloSource) Load(ctx context.Context, boardID string) (*Snapshot, error) {
	var (
		lists []trello.List
		cards []trello.Card
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lists, err = s.client.Lists(gctx, boardID)
		if err != nil {
			return eris.Wrap(err, "fetching lists")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cards, err = s.client.Cards(gctx, boardID)
		if err != nil {
			return eris.Wrap(err, "fetching cards")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{BoardID: boardID}
	for _, l := range lists {
		if l.Closed {
			continue
		}
		snap.Groups = append(snap.Groups, model.Group{
			ID:             l.ID,
			Name:           l.Name,
			CategoryIDs:    []string{l.ID},
			DefaultVisible: true,
		})
	}
	for _, c := range cards {
		if c.Closed {
			continue
		}
		snap.Items = append(snap.Items, cardToItem(c))
	}

	zap.L().Debug("loaded trello board",
		zap.String("board_id", boardID),
		zap.Int("groups", len(snap.Groups)),
		zap.Int("items", len(snap.Items)))

	return snap, nil
}

// SaveCoordinates writes the coordinates onto the card.
func (s *TrelloSource) SaveCoordinates(ctx context.Context, itemID string, coords model.Coordinates) error {
	if err := s.client.UpdateCardCoordinates(ctx, itemID, coords.Lat, coords.Lng); err != nil {
		return eris.Wrapf(err, "updating card %s", itemID)
	}
	return nil
}

func cardToItem(c trello.Card) model.Item {
	item := model.Item{
		ID:         c.ID,
		Name:       c.Name,
		Desc:       c.Desc,
		CategoryID: c.IDList,
		Completed:  c.DueComplete,
		Template:   c.IsTemplate,
	}
	for _, l := range c.Labels {
		item.Labels = append(item.Labels, model.Label{
			ID:    l.ID,
			Name:  l.Name,
			Color: l.Color,
		})
	}
	if c.Coordinates != nil {
		coords, err := model.NewCoordinates(c.Coordinates.Latitude, c.Coordinates.Longitude)
		if err != nil {
			zap.L().Warn("card has out-of-range coordinates",
				zap.String("card_id", c.ID),
				zap.Error(err))
		} else {
			item.Coords = &coords
		}
	}
	return item
}
