package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/board"
	"github.com/cardmap/cardmap-cli/internal/config"
	"github.com/cardmap/cardmap-cli/internal/enrich"
	"github.com/cardmap/cardmap-cli/internal/markers"
	"github.com/cardmap/cardmap-cli/internal/model"
	"github.com/cardmap/cardmap-cli/internal/overlay"
	"github.com/cardmap/cardmap-cli/internal/resilience"
	"github.com/cardmap/cardmap-cli/internal/store"
	"github.com/cardmap/cardmap-cli/pkg/geocode"
	"github.com/cardmap/cardmap-cli/pkg/notion"
	"github.com/cardmap/cardmap-cli/pkg/trello"
)

// boardEnv holds the loaded session and the enrichment pipeline the
// run, serve, export and groups commands share.
type boardEnv struct {
	Store      store.Store
	Source     board.Source
	Session    *overlay.Session
	Queue      *enrich.Queue
	Reconciler *markers.Reconciler
	Rules      markers.IconRules
}

// Close releases resources held by the environment.
func (be *boardEnv) Close() {
	if be.Store != nil {
		_ = be.Store.Close()
	}
}

// Resync rebuilds the marker set from the current session state.
func (be *boardEnv) Resync() {
	filter := markers.NewFilter(be.Session.Groups(), be.Session.Visibility())
	be.Reconciler.Sync(be.Session.Items(), filter)
}

// lookupTTL bounds the geocode result cache.
func lookupTTL() time.Duration {
	return time.Duration(cfg.Geocode.CacheTTLHours) * time.Hour
}

// initSource builds the configured board source.
func initSource() (board.Source, error) {
	switch cfg.Source.Kind {
	case "trello":
		var opts []trello.Option
		if cfg.Trello.BaseURL != "" {
			opts = append(opts, trello.WithBaseURL(cfg.Trello.BaseURL))
		}
		return board.NewTrelloSource(trello.NewClient(cfg.Trello.Key, cfg.Trello.Token, opts...)), nil
	case "notion":
		props := board.PropertyMap{
			Title:     cfg.Notion.Props.Title,
			Desc:      cfg.Notion.Props.Desc,
			Category:  cfg.Notion.Props.Category,
			Labels:    cfg.Notion.Props.Labels,
			Done:      cfg.Notion.Props.Done,
			Template:  cfg.Notion.Props.Template,
			Latitude:  cfg.Notion.Props.Latitude,
			Longitude: cfg.Notion.Props.Longitude,
		}
		return board.NewNotionSource(notion.NewClient(cfg.Notion.Token), props), nil
	default:
		return nil, eris.Errorf("unsupported source kind: %s", cfg.Source.Kind)
	}
}

// groupsFromConfig maps configured custom groups onto the model. A group
// with no name shows its ID.
func groupsFromConfig(in []config.GroupConfig) []model.Group {
	out := make([]model.Group, 0, len(in))
	for _, g := range in {
		name := g.Name
		if name == "" {
			name = g.ID
		}
		out = append(out, model.Group{
			ID:             g.ID,
			Name:           name,
			CategoryIDs:    g.CategoryIDs,
			DefaultVisible: g.DefaultVisible,
		})
	}
	return out
}

// initBoard sets up the store, loads the board with retry, restores the
// saved visibility state, and wires the enrichment queue to the marker
// reconciler. Callers should defer env.Close().
func initBoard(ctx context.Context, mode string) (*boardEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Expired geocode lookups are purged on open; there is no
	// background sweeper.
	if n, err := st.DeleteExpiredLookups(ctx); err != nil {
		zap.L().Warn("purge expired lookups", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("purged expired lookups", zap.Int("count", n))
	}

	src, err := initSource()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	retryCfg := cfg.Source.Retry.Build()
	retryCfg.OnRetry = resilience.RetryLogger(cfg.Source.Kind, "load_board")
	snap, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*board.Snapshot, error) {
		return src.Load(ctx, cfg.Source.Board)
	})
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load board")
	}
	snap.ApplyGrouping(groupsFromConfig(cfg.Source.Groups))

	vis, err := loadVisibility(ctx, st, snap)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rules := markers.DefaultIconRules()
	if cfg.Markers.RulesPath != "" {
		rules, err = markers.LoadIconRules(cfg.Markers.RulesPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load icon rules")
		}
	}

	env := &boardEnv{
		Store:      st,
		Source:     src,
		Session:    overlay.NewSession(snap, vis),
		Reconciler: markers.NewReconciler(rules, nil),
		Rules:      rules,
	}

	geocoder := geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RatePerSec),
		geocode.WithLimit(cfg.Geocode.MaxResults),
		geocode.WithCache(st),
	)

	qopts := []enrich.QueueOption{
		enrich.WithBoardID(snap.BoardID),
		enrich.WithDelay(time.Duration(cfg.Enrich.DelayMS) * time.Millisecond),
		enrich.WithRecorder(st),
		enrich.WithOnResolved(env.Resync),
	}
	if cfg.Enrich.Persist {
		qopts = append(qopts, enrich.WithPersister(src))
	}
	env.Queue = enrich.NewQueue(env.Session, enrich.NewResolver(geocoder), qopts...)

	env.Resync()

	zap.L().Info("board loaded",
		zap.String("board_id", snap.BoardID),
		zap.Int("items", len(snap.Items)),
		zap.Int("groups", len(snap.Groups)),
		zap.Int("markers", len(env.Reconciler.Markers())),
	)

	return env, nil
}

// loadVisibility restores the saved filter state for the board. First
// runs fall back to each group's default, with any stored per-group
// overrides applied.
func loadVisibility(ctx context.Context, st store.Store, snap *board.Snapshot) (model.VisibilityState, error) {
	saved, err := st.VisibilityState(ctx, snap.BoardID)
	if err != nil {
		return model.VisibilityState{}, eris.Wrap(err, "load visibility state")
	}
	if saved != nil {
		vis := saved.Clone()
		// Groups created since the state was saved get their default.
		for _, g := range snap.Groups {
			if _, ok := vis.Visible[g.ID]; !ok {
				vis.Visible[g.ID] = g.DefaultVisible
			}
		}
		return vis, nil
	}

	overrides, err := st.GroupDefaults(ctx, snap.BoardID)
	if err != nil {
		return model.VisibilityState{}, eris.Wrap(err, "load group defaults")
	}
	return model.DefaultVisibility(snap.Groups, overrides), nil
}
