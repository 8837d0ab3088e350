package game

import (
	"time"

	"github.com/sirupsen/logrus"
)

// armLocked schedules fire to run under the room lock after d. The timer is
// tagged with the current phase instance and does nothing if the room has
// moved on by the time it fires.
func (r *Room) armLocked(kind timerKind, d time.Duration, fire func()) {
	if t, ok := r.timers[kind]; ok {
		t.Stop()
	}
	instance := r.instance
	r.timers[kind] = time.AfterFunc(d, func() {
		r.mu.Lock()
		if r.closed || r.instance != instance {
			r.log.WithFields(logrus.Fields{
				"timer":    kind,
				"armed":    instance,
				"instance": r.instance,
			}).Debug("stale timer fired, ignoring")
			r.mu.Unlock()
			return
		}
		delete(r.timers, kind)
		r.lastActivity = r.now()
		fire()
		r.mu.Unlock()
		r.flush()
	})
}

func (r *Room) stopTimersLocked() {
	for kind, t := range r.timers {
		t.Stop()
		delete(r.timers, kind)
	}
}
