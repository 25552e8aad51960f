package device

import (
	"context"
	"sync"
	"time"

	"reptilia-backend/internal/habitat"
)

// MockSensor serves programmed values. A sensor with no value reports no_data.
type MockSensor struct {
	mu     sync.Mutex
	values map[string]float64
	errs   map[string]habitat.FailureKind
	Now    func() time.Time
}

func NewMockSensor() *MockSensor {
	return &MockSensor{values: map[string]float64{}, errs: map[string]habitat.FailureKind{}}
}

func (m *MockSensor) Set(sensorID string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[sensorID] = value
	delete(m.errs, sensorID)
}

// Fail makes subsequent reads of sensorID fail with kind until Set is called.
func (m *MockSensor) Fail(sensorID string, kind habitat.FailureKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[sensorID] = kind
}

func (m *MockSensor) Read(ctx context.Context, sensorID string) (habitat.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind, ok := m.errs[sensorID]; ok {
		return habitat.Reading{}, &habitat.AcquisitionError{SensorID: sensorID, Kind: kind}
	}
	v, ok := m.values[sensorID]
	if !ok {
		return habitat.Reading{}, &habitat.AcquisitionError{SensorID: sensorID, Kind: habitat.KindNoData}
	}
	ts := time.Now().UTC()
	if m.Now != nil {
		ts = m.Now()
	}
	return habitat.Reading{SensorID: sensorID, Value: v, Timestamp: ts, Valid: true}, nil
}

// MockOutlet records every accepted command.
type MockOutlet struct {
	mu     sync.Mutex
	states map[string]habitat.OutletState
	fail   map[string]habitat.FailureKind
	calls  []habitat.OutletCommand
}

func NewMockOutlet() *MockOutlet {
	return &MockOutlet{states: map[string]habitat.OutletState{}, fail: map[string]habitat.FailureKind{}}
}

func (m *MockOutlet) Fail(outletID string, kind habitat.FailureKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[outletID] = kind
}

func (m *MockOutlet) Recover(outletID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fail, outletID)
}

func (m *MockOutlet) SetState(ctx context.Context, outletID string, state habitat.OutletState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind, ok := m.fail[outletID]; ok {
		return &habitat.ActuationError{OutletID: outletID, Kind: kind}
	}
	m.states[outletID] = state
	m.calls = append(m.calls, habitat.OutletCommand{OutletID: outletID, DesiredState: state})
	return nil
}

func (m *MockOutlet) GetState(ctx context.Context, outletID string) (habitat.OutletState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[outletID]
	if !ok {
		return habitat.OutletUnknown, nil
	}
	return state, nil
}

func (m *MockOutlet) State(outletID string) habitat.OutletState {
	state, _ := m.GetState(context.Background(), outletID)
	return state
}

// Commands returns a copy of the accepted commands.
func (m *MockOutlet) Commands() []habitat.OutletCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]habitat.OutletCommand(nil), m.calls...)
}
