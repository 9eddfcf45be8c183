// Package enrich turns address candidates into coordinates and drives
// the one-at-a-time resolution backlog.
package enrich

import (
	"context"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/model"
	"github.com/cardmap/cardmap-cli/pkg/geocode"
)

// directCoordRe matches a candidate that is nothing but a decimal
// "lat,lng" pair. Unlike extraction, integer degrees are accepted here
// since the whole candidate is already known to be a coordinate claim.
var directCoordRe = regexp.MustCompile(`^\s*([-+]?\d{1,3}(?:\.\d+)?)\s*,\s*([-+]?\d{1,3}(?:\.\d+)?)\s*$`)

// Geocoder is the lookup operation the resolver needs from a geocoding
// client.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Resolver resolves one address candidate to coordinates. Candidates
// that are already a plain coordinate pair resolve locally with no
// lookup; anything else costs exactly one geocoding request.
type Resolver struct {
	geo Geocoder
}

// NewResolver creates a resolver backed by the given geocoder.
func NewResolver(geo Geocoder) *Resolver {
	return &Resolver{geo: geo}
}

// Resolve returns the coordinates for the candidate, or nil when the
// candidate resolves to nothing: an out-of-range direct pair, or a
// lookup with zero results. Lookup transport failures come back as
// errors for the caller to log and move past.
func (r *Resolver) Resolve(ctx context.Context, candidate string) (*model.Coordinates, error) {
	if m := directCoordRe.FindStringSubmatch(candidate); m != nil {
		lat, latErr := strconv.ParseFloat(m[1], 64)
		lng, lngErr := strconv.ParseFloat(m[2], 64)
		if latErr != nil || lngErr != nil {
			return nil, nil
		}
		coords, err := model.NewCoordinates(lat, lng)
		if err != nil {
			// A direct pair that is out of range is a dead end, not a
			// query worth sending to the geocoder.
			zap.L().Debug("direct coordinate pair out of range",
				zap.String("candidate", candidate))
			return nil, nil
		}
		return &coords, nil
	}

	results, err := r.geo.Search(ctx, candidate)
	if err != nil {
		return nil, eris.Wrap(err, "looking up candidate")
	}
	if len(results) == 0 {
		return nil, nil
	}

	// Results arrive ranked; the first one wins.
	best := results[0]
	coords, err := model.NewCoordinates(best.Lat, best.Lng)
	if err != nil {
		return nil, eris.Wrapf(err, "lookup for %q returned invalid coordinates", candidate)
	}
	return &coords, nil
}
