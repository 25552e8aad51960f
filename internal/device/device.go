package device

import (
	"context"

	"reptilia-backend/internal/habitat"
)

// SensorSource reads one sensor. Failures are *habitat.AcquisitionError.
type SensorSource interface {
	Read(ctx context.Context, sensorID string) (habitat.Reading, error)
}

// OutletSink drives smart outlets. Failures are *habitat.ActuationError.
type OutletSink interface {
	SetState(ctx context.Context, outletID string, state habitat.OutletState) error
	GetState(ctx context.Context, outletID string) (habitat.OutletState, error)
}
