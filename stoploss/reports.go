package stoploss

import (
	"context"
	"fmt"

	"github.com/raykavin/trailstop/core"
)

// ReportHandler reacts to execution reports from the user-data stream. Only
// reports for the order the controller currently tracks are acted on; stray
// reports for unrelated orders on the same market are ignored.
type ReportHandler struct {
	controller *Controller
	notifier   core.Notifier
	log        core.Logger
	callbacks  Callbacks
	shutdown   func()
}

// NewReportHandler creates a handler bound to a lifecycle controller. The
// shutdown hook stops the engine after a terminal fill.
func NewReportHandler(controller *Controller, notifier core.Notifier, log core.Logger, callbacks Callbacks, shutdown func()) *ReportHandler {
	return &ReportHandler{
		controller: controller,
		notifier:   notifier,
		log:        log,
		callbacks:  callbacks,
		shutdown:   shutdown,
	}
}

// OnReport processes one execution report.
func (h *ReportHandler) OnReport(ctx context.Context, report core.ExecutionReport) {
	tracked := h.controller.OrderID()
	if report.OrderID == 0 || report.OrderID != tracked {
		h.log.Debugf("ignoring execution report for unrelated order %d (status %s)", report.OrderID, report.Status)
		return
	}

	switch report.Status {
	case core.OrderStatusTypeNew:
		h.log.Infof("stop loss order %d confirmed by the exchange", report.OrderID)

	case core.OrderStatusTypeCanceled:
		h.log.Infof("stop loss order %d canceled, placing replacement", report.OrderID)
		h.controller.RecordExecution(ctx, report)
		if err := h.controller.Resubmit(ctx); err != nil {
			h.log.WithError(err).Error("stoploss/reports: stop loss order resubmission failed")
		}

	case core.OrderStatusTypePartiallyFilled:
		h.log.Infof("stop loss order %d partially filled: %f of %f", report.OrderID, report.FilledQuantity, report.Quantity)
		if h.callbacks.OnPartiallyFilled != nil {
			h.callbacks.OnPartiallyFilled(report)
		}

	case core.OrderStatusTypeFilled:
		msg := fmt.Sprintf("STOP LOSS FILLED at price %f (order_id=%d)", report.Price, report.OrderID)
		h.log.Info("stoploss/reports: ", msg)
		h.controller.RecordExecution(ctx, report)

		if h.notifier != nil {
			h.notifier.Notify(msg)
		}
		if h.callbacks.OnFinished != nil {
			h.callbacks.OnFinished(report)
		}

		h.shutdown()

	default:
		h.log.Debugf("ignoring execution report status %s for order %d", report.Status, report.OrderID)
	}
}
