package habitat

import (
	"errors"
	"fmt"
)

type Sensors struct {
	Basking  string `json:"basking" yaml:"basking"`
	Cool     string `json:"cool" yaml:"cool"`
	Humidity string `json:"humidity" yaml:"humidity"`
}

type Outlets struct {
	HeatLamp      string `json:"heat_lamp" yaml:"heat_lamp"`
	CeramicHeater string `json:"ceramic_heater" yaml:"ceramic_heater"`
	UVB           string `json:"uvb" yaml:"uvb"`
	Humidifier    string `json:"humidifier" yaml:"humidifier"`
	Mister        string `json:"mister" yaml:"mister"`
}

type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Timezone  string  `json:"timezone" yaml:"timezone"`
}

type Config struct {
	ID                  string        `json:"habitat_id" yaml:"id"`
	Name                string        `json:"name" yaml:"name"`
	Species             Species       `json:"species" yaml:"species"`
	Requirements        *Requirements `json:"requirements,omitempty" yaml:"requirements"`
	Sensors             Sensors       `json:"sensors" yaml:"sensors"`
	Outlets             Outlets       `json:"outlets" yaml:"outlets"`
	Location            Location      `json:"location" yaml:"location"`
	PollIntervalSeconds int           `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	// Gateway names the device gateway serving this habitat; "mock" or empty
	// uses in-process mocks.
	Gateway  string `json:"gateway,omitempty" yaml:"gateway"`
	SunTimes string `json:"sun_times,omitempty" yaml:"sun_times"`
}

// Resolve fills Requirements from the species preset when the config does
// not carry explicit bounds.
func (c *Config) Resolve() error {
	if c.ID == "" {
		return errors.New("habitat id is required")
	}
	if c.Requirements != nil {
		return nil
	}
	req, err := RequirementsFor(c.Species)
	if err != nil {
		return err
	}
	c.Requirements = &req
	return nil
}

func (c Config) SensorIDs() []string {
	return nonEmpty(c.Sensors.Basking, c.Sensors.Cool, c.Sensors.Humidity)
}

func (c Config) OutletIDs() []string {
	return nonEmpty(c.Outlets.HeatLamp, c.Outlets.CeramicHeater, c.Outlets.UVB, c.Outlets.Humidifier, c.Outlets.Mister)
}

// UnitFor guesses the unit of a configured sensor from its role.
func (c Config) UnitFor(sensorID string) Unit {
	if sensorID != "" && sensorID == c.Sensors.Humidity {
		return UnitHumidity
	}
	return UnitTemperature
}

// Inventory is the set of devices a habitat owns; rules referring to anything
// else are a configuration inconsistency.
type Inventory struct {
	Sensors map[string]struct{}
	Outlets map[string]struct{}
}

func (c Config) Inventory() Inventory {
	inv := Inventory{Sensors: map[string]struct{}{}, Outlets: map[string]struct{}{}}
	for _, id := range c.SensorIDs() {
		inv.Sensors[id] = struct{}{}
	}
	for _, id := range c.OutletIDs() {
		inv.Outlets[id] = struct{}{}
	}
	return inv
}

func (inv Inventory) HasSensor(id string) bool {
	if inv.Sensors == nil {
		return true
	}
	_, ok := inv.Sensors[id]
	return ok
}

func (inv Inventory) HasOutlet(id string) bool {
	if inv.Outlets == nil {
		return true
	}
	_, ok := inv.Outlets[id]
	return ok
}

func BuildThresholds(c Config) []Threshold {
	req := c.requirements()
	thresholds := []Threshold{}
	if c.Sensors.Basking != "" {
		thresholds = append(thresholds, tempThreshold(c.Sensors.Basking, ZoneBasking, req.BaskingTempMin, req.BaskingTempMax, ActiveDay))
	}
	if c.Sensors.Cool != "" {
		thresholds = append(thresholds,
			tempThreshold(c.Sensors.Cool, ZoneCoolSide, req.CoolSideTempMin, req.CoolSideTempMax, ActiveDay),
			tempThreshold(c.Sensors.Cool, ZoneNight, req.NightTempMin, req.NightTempMax, ActiveNight),
		)
	}
	if c.Sensors.Humidity != "" {
		thresholds = append(thresholds, Threshold{
			SensorID:   c.Sensors.Humidity,
			Zone:       ZoneHumidity,
			Min:        req.HumidityMin,
			Max:        req.HumidityMax,
			WarningMin: req.HumidityMin - 5,
			WarningMax: req.HumidityMax + 5,
			Hysteresis: 5,
			ActiveIn:   ActiveAlways,
		})
	}
	return thresholds
}

func tempThreshold(sensorID string, zone Zone, min, max float64, active ActiveIn) Threshold {
	return Threshold{
		SensorID:   sensorID,
		Zone:       zone,
		Min:        min,
		Max:        max,
		WarningMin: min - 2,
		WarningMax: max + 2,
		Hysteresis: 1,
		ActiveIn:   active,
	}
}

// BuildRules generates the default automation rules for the outlets the
// habitat has. Heating rules are tagged daytime so the night transition can
// switch them off.
func BuildRules(c Config) []Rule {
	req := c.requirements()
	rules := []Rule{}
	if c.Sensors.Basking != "" && c.Outlets.HeatLamp != "" {
		rules = append(rules, rulePair(c.ID, "basking-heat", c.Sensors.Basking, c.Outlets.HeatLamp,
			req.BaskingTempMin, req.BaskingTempMax, 1, 300, TagDaytime)...)
	}
	if c.Sensors.Cool != "" && c.Outlets.CeramicHeater != "" {
		rules = append(rules, rulePair(c.ID, "cool_side-heat", c.Sensors.Cool, c.Outlets.CeramicHeater,
			req.CoolSideTempMin, req.CoolSideTempMax, 1, 300, TagDaytime)...)
	}
	if c.Sensors.Humidity != "" && c.Outlets.Humidifier != "" {
		rules = append(rules, rulePair(c.ID, "humidity", c.Sensors.Humidity, c.Outlets.Humidifier,
			req.HumidityMin, req.HumidityMax, 5, 600, "")...)
	}
	return rules
}

// NightHeatingRules returns the ceramic heater pair driven by the night
// temperature band. Nil when the habitat has no cool sensor or heater.
func NightHeatingRules(c Config) []Rule {
	if c.Sensors.Cool == "" || c.Outlets.CeramicHeater == "" {
		return nil
	}
	req := c.requirements()
	rules := rulePair(c.ID, "night-heat", c.Sensors.Cool, c.Outlets.CeramicHeater,
		req.NightTempMin, req.NightTempMax, 1, 300, TagNight)
	for i := range rules {
		rules[i].Enabled = false
	}
	return rules
}

func rulePair(habitatID, prefix, sensorID, outletID string, min, max, hysteresis float64, minDuration int, tag string) []Rule {
	return []Rule{
		{
			ID:                 fmt.Sprintf("%s-%s-on", habitatID, prefix),
			Name:               fmt.Sprintf("%s on when < %g", prefix, min),
			HabitatID:          habitatID,
			SensorID:           sensorID,
			OutletID:           outletID,
			Operator:           OpLT,
			TriggerValue:       min,
			ActionOnTrigger:    ActionOn,
			ActionOnClear:      ActionNone,
			Hysteresis:         hysteresis,
			MinDurationSeconds: minDuration,
			Tag:                tag,
			Enabled:            true,
		},
		{
			ID:                 fmt.Sprintf("%s-%s-off", habitatID, prefix),
			Name:               fmt.Sprintf("%s off when >= %g", prefix, max),
			HabitatID:          habitatID,
			SensorID:           sensorID,
			OutletID:           outletID,
			Operator:           OpGTE,
			TriggerValue:       max,
			ActionOnTrigger:    ActionOff,
			ActionOnClear:      ActionNone,
			Hysteresis:         hysteresis,
			MinDurationSeconds: minDuration,
			Tag:                tag,
			Enabled:            true,
		},
	}
}

func (c Config) requirements() Requirements {
	if c.Requirements != nil {
		return *c.Requirements
	}
	req, _ := RequirementsFor(c.Species)
	return req
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
