package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"reptilia-backend/internal/habitat"
)

const historyLimit = 200

// alertBook deduplicates alerts. An alert stays latched under its key until
// the condition clears, so an acknowledged alert is not raised again while
// the violation persists.
type alertBook struct {
	habitatID string
	latched   map[string]*habitat.Alert
	byID      map[string]*habitat.Alert
	order     []string
}

func newAlertBook(habitatID string) *alertBook {
	return &alertBook{
		habitatID: habitatID,
		latched:   map[string]*habitat.Alert{},
		byID:      map[string]*habitat.Alert{},
	}
}

// sensorKey latches per zone; a sensor watched by two zones alerts for each.
func sensorKey(sensorID string, zone habitat.Zone, status habitat.Status) string {
	return "sensor:" + sensorID + ":" + string(zone) + ":" + string(status)
}

func outletKey(outletID string) string {
	return "outlet:" + outletID
}

func (b *alertBook) restore(alerts []habitat.Alert) {
	for _, a := range alerts {
		if !a.Open() {
			continue
		}
		key := sensorKey(a.SensorID, a.Zone, a.Status)
		if a.OutletID != "" {
			key = outletKey(a.OutletID)
		}
		b.latched[key] = &a
		b.remember(&a)
	}
}

func (b *alertBook) remember(a *habitat.Alert) {
	if _, ok := b.byID[a.ID]; ok {
		return
	}
	b.byID[a.ID] = a
	b.order = append(b.order, a.ID)
	for len(b.order) > historyLimit {
		oldest := b.byID[b.order[0]]
		if oldest.Open() {
			break
		}
		delete(b.byID, b.order[0])
		b.order = b.order[1:]
	}
}

// raise creates or updates the alert for key. It reports whether anything
// changed.
func (b *alertBook) raise(key string, tmpl habitat.Alert, now time.Time) (habitat.Alert, bool) {
	if a, ok := b.latched[key]; ok {
		if a.Acknowledged {
			return *a, false
		}
		a.Value = tmpl.Value
		a.CreatedAt = now
		a.Message = tmpl.Message
		a.ViolatedBound = tmpl.ViolatedBound
		a.Zone = tmpl.Zone
		if tmpl.Severity.Above(a.Severity) {
			a.Severity = tmpl.Severity
		}
		return *a, true
	}
	a := tmpl
	a.ID = uuid.NewString()
	a.HabitatID = b.habitatID
	a.CreatedAt = now
	b.latched[key] = &a
	b.remember(&a)
	return a, true
}

// resolveSensor clears latched alerts for the sensor zone whose status
// differs from current and returns the ones that were still open.
func (b *alertBook) resolveSensor(sensorID string, zone habitat.Zone, current habitat.Status, now time.Time) []habitat.Alert {
	var resolved []habitat.Alert
	for _, status := range []habitat.Status{habitat.StatusTooLow, habitat.StatusTooHigh} {
		if status == current {
			continue
		}
		if a := b.release(sensorKey(sensorID, zone, status), now); a != nil {
			resolved = append(resolved, *a)
		}
	}
	return resolved
}

func (b *alertBook) resolveOutlet(outletID string, now time.Time) *habitat.Alert {
	return b.release(outletKey(outletID), now)
}

func (b *alertBook) release(key string, now time.Time) *habitat.Alert {
	a, ok := b.latched[key]
	if !ok {
		return nil
	}
	delete(b.latched, key)
	if a.Acknowledged {
		return nil
	}
	resolved := now
	a.ResolvedAt = &resolved
	return a
}

func (b *alertBook) acknowledge(id, by string, now time.Time) (habitat.Alert, error) {
	a, ok := b.byID[id]
	if !ok {
		return habitat.Alert{}, habitat.ErrNotFound
	}
	if a.Acknowledged {
		return *a, nil
	}
	at := now
	a.Acknowledged = true
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = by
	return *a, nil
}

func (b *alertBook) open() []habitat.Alert {
	out := []habitat.Alert{}
	for _, id := range b.order {
		if a := b.byID[id]; a.Open() {
			out = append(out, *a)
		}
	}
	return out
}

func sensorMessage(sensorID string, zone habitat.Zone, status habitat.Status, value float64, bound string) string {
	return fmt.Sprintf("%s (%s) %s: %g outside %s", sensorID, zone, status, value, bound)
}

func outletMessage(outletID string, failures int) string {
	return fmt.Sprintf("outlet %s failed %d consecutive commands", outletID, failures)
}
