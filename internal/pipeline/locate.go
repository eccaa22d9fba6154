package pipeline

import (
	"github.com/ppiankov/drillgrade/internal/geo"
	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/ppiankov/drillgrade/internal/p2p"
)

// locate gives every unit and every P2P target a map position. Reported
// positions are kept and registered first so no synthetic point lands on
// one; the rest are spread around the exercise center in two batches,
// messages then targets. It returns the number of synthetic positions.
func (p *Pipeline) locate(pl *plan, messages []model.Message, units []*unit) int {
	center, radius := p.jitterArea(pl.exercise)
	j := geo.NewJitterer(p.config.Location.Fallback)

	var targets []p2p.TargetSpec
	if pl.targets != nil {
		targets = pl.targets.Targets
	}

	for i := range messages {
		if messages[i].Location != nil {
			j.Occupy(*messages[i].Location)
		}
	}
	for i := range targets {
		if targets[i].Location != nil {
			j.Occupy(*targets[i].Location)
		}
	}

	// a sender only needs a synthetic position when none of their
	// messages carries one
	var pending []*model.Message
	for _, u := range units {
		if unitLocation(u) == nil {
			pending = append(pending, u.latest())
		}
	}
	for i, c := range j.Jitter(len(pending), center, radius) {
		loc := c
		pending[i].Location = &loc
		pending[i].Synthetic = true
	}
	synthetic := len(pending)

	var missing []int
	for i := range targets {
		if targets[i].Location == nil {
			missing = append(missing, i)
		}
	}
	for k, c := range j.Jitter(len(missing), center, radius) {
		loc := c
		targets[missing[k]].Location = &loc
		targets[missing[k]].Synthetic = true
	}

	return synthetic + len(missing)
}

func (p *Pipeline) jitterArea(ex *model.Exercise) (*model.Coordinate, float64) {
	radius := p.config.Location.RadiusMeters
	var center *model.Coordinate
	if ex.Location != nil {
		if ex.Location.Center != nil && ex.Location.Center.Valid() {
			c := *ex.Location.Center
			center = &c
		}
		if ex.Location.RadiusMeters > 0 {
			radius = ex.Location.RadiusMeters
		}
	}
	return center, radius
}

// unitLocation is the most recent position among a unit's messages
func unitLocation(u *unit) *model.Coordinate {
	for i := len(u.messages) - 1; i >= 0; i-- {
		if loc := u.messages[i].Location; loc != nil {
			return loc
		}
	}
	return nil
}
