package stoploss

import (
	"context"

	"github.com/raykavin/trailstop/core"
)

// PriceTracker turns the raw price feed into ratchet attempts. For every tick
// it derives a stop price candidate and asks the controller to replace the
// protective order when the candidate improves on the held stop price.
type PriceTracker struct {
	controller *Controller
	limit      core.Offset
	precision  int
	log        core.Logger
}

// NewPriceTracker creates a tracker bound to a lifecycle controller.
func NewPriceTracker(controller *Controller, settings *core.Settings, log core.Logger) *PriceTracker {
	return &PriceTracker{
		controller: controller,
		limit:      settings.StopLossLimit,
		precision:  settings.PrecisionCrypto,
		log:        log,
	}
}

// OnPriceTick processes a single price quote. The comparison against the held
// stop price here is advisory, it only avoids useless replace cycles; the
// authoritative ratchet happens inside the controller's critical section.
func (t *PriceTracker) OnPriceTick(ctx context.Context, tick core.PriceTick) {
	if tick.Price <= 0 {
		t.log.Debugf("ignoring unusable price quote %f for %s", tick.Price, tick.Pair)
		return
	}

	candidate := StopPriceFrom(tick.Price, t.limit, t.precision)

	stop, ok := t.controller.StopPrice()
	switch {
	case !ok:
		t.log.Infof("setting stop loss price to %f (price %f)", candidate, tick.Price)
	case candidate > stop:
		t.log.Infof("raising stop loss price from %f to %f (price %f)", stop, candidate, tick.Price)
	default:
		return
	}

	if err := t.controller.Replace(ctx, candidate, tick.Price); err != nil {
		t.log.WithError(err).Error("stoploss/tracker: stop loss order replace failed")
	}
}
