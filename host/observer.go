package host

import (
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum/resource"
)

// logObserver logs resource lifecycle events at debug level.
type logObserver struct {
	logger *zap.Logger
}

func (o *logObserver) OnResourceEvent(e resource.Event) {
	o.logger.Debug("resource "+e.Type.String(),
		zap.Stringer("kind", e.Handle.Kind),
		zap.Uint32("slot", e.Handle.Index),
		zap.Uint32("generation", e.Handle.Generation),
		zap.Uint64("id", e.Handle.ID()))
}
