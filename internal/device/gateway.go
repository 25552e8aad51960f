package device

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"reptilia-backend/internal/habitat"
)

// Gateway talks JSON-RPC to a device bridge exposing sensor.read,
// outlet.set and outlet.get.
type Gateway struct {
	Transport Transport
}

func NewGateway(transport Transport) *Gateway {
	return &Gateway{Transport: transport}
}

type sensorResult struct {
	Value     *float64     `json:"value"`
	Unit      habitat.Unit `json:"unit"`
	Timestamp time.Time    `json:"timestamp"`
}

func (g *Gateway) Read(ctx context.Context, sensorID string) (habitat.Reading, error) {
	resp, err := g.Transport.Call(ctx, "sensor.read", map[string]any{"sensor_id": sensorID})
	if err != nil {
		return habitat.Reading{}, &habitat.AcquisitionError{SensorID: sensorID, Kind: classify(err), Err: err}
	}
	var result sensorResult
	if len(resp) == 0 || string(resp) == "null" {
		return habitat.Reading{}, &habitat.AcquisitionError{SensorID: sensorID, Kind: habitat.KindNoData, Err: errEmptyResult}
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return habitat.Reading{}, &habitat.AcquisitionError{SensorID: sensorID, Kind: habitat.KindInvalid, Err: err}
	}
	if result.Value == nil {
		return habitat.Reading{}, &habitat.AcquisitionError{SensorID: sensorID, Kind: habitat.KindNoData}
	}
	return habitat.Reading{
		SensorID:  sensorID,
		Value:     *result.Value,
		Unit:      result.Unit,
		Timestamp: result.Timestamp,
		Valid:     true,
	}, nil
}

func (g *Gateway) SetState(ctx context.Context, outletID string, state habitat.OutletState) error {
	_, err := g.Transport.Call(ctx, "outlet.set", map[string]any{"outlet_id": outletID, "state": state})
	if err != nil {
		return &habitat.ActuationError{OutletID: outletID, Kind: classify(err), Err: err}
	}
	return nil
}

func (g *Gateway) GetState(ctx context.Context, outletID string) (habitat.OutletState, error) {
	resp, err := g.Transport.Call(ctx, "outlet.get", map[string]any{"outlet_id": outletID})
	if err != nil {
		return habitat.OutletUnknown, &habitat.ActuationError{OutletID: outletID, Kind: classify(err), Err: err}
	}
	var result struct {
		State habitat.OutletState `json:"state"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return habitat.OutletUnknown, &habitat.ActuationError{OutletID: outletID, Kind: habitat.KindError, Err: err}
	}
	switch result.State {
	case habitat.OutletOn, habitat.OutletOff:
		return result.State, nil
	default:
		return habitat.OutletUnknown, nil
	}
}

func classify(err error) habitat.FailureKind {
	var rpcErr *RPCError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return habitat.KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return habitat.KindTimeout
	case errors.As(err, &rpcErr):
		return habitat.KindError
	default:
		return habitat.KindConnection
	}
}
