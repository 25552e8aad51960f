package threshold

import (
	"errors"
	"testing"

	"reptilia-backend/internal/habitat"
)

func TestValidateThreshold(t *testing.T) {
	if err := Validate(band()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateThresholdInvalidBands(t *testing.T) {
	th := band()
	th.Min = 40
	th.Hysteresis = -1
	err := Validate(th)
	var verr *habitat.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Code != habitat.CodeThresholdInvalid || len(verr.Details) < 2 {
		t.Fatalf("unexpected validation error: %+v", verr)
	}
}

func TestValidateThresholdWarningBand(t *testing.T) {
	th := band()
	th.WarningMax = 32
	if err := Validate(th); err == nil {
		t.Fatalf("expected validation error")
	}
}
