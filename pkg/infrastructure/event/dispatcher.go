package event

import (
	log "github.com/sirupsen/logrus"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/common/domain"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/metrics"
)

// LogDispatcher records domain events in the log and in metrics. There is no
// broker behind it yet.
type LogDispatcher struct {
	logger log.FieldLogger
}

func NewLogDispatcher(logger log.FieldLogger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(event domain.Event) error {
	metrics.DomainEvents.WithLabelValues(event.Type()).Inc()
	d.logger.WithFields(log.Fields{
		"event":   event.Type(),
		"payload": event,
	}).Info("domain event")
	return nil
}
