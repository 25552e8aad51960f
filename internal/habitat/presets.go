package habitat

import "fmt"

type Species string

const (
	BallPython    Species = "ball_python"
	CornSnake     Species = "corn_snake"
	BeardedDragon Species = "bearded_dragon"
	LeopardGecko  Species = "leopard_gecko"
)

type Requirements struct {
	BaskingTempMin  float64 `json:"basking_temp_min" yaml:"basking_temp_min"`
	BaskingTempMax  float64 `json:"basking_temp_max" yaml:"basking_temp_max"`
	CoolSideTempMin float64 `json:"cool_side_temp_min" yaml:"cool_side_temp_min"`
	CoolSideTempMax float64 `json:"cool_side_temp_max" yaml:"cool_side_temp_max"`
	NightTempMin    float64 `json:"night_temp_min" yaml:"night_temp_min"`
	NightTempMax    float64 `json:"night_temp_max" yaml:"night_temp_max"`
	HumidityMin     float64 `json:"humidity_min" yaml:"humidity_min"`
	HumidityMax     float64 `json:"humidity_max" yaml:"humidity_max"`
	UVBRequired     bool    `json:"uvb_required" yaml:"uvb_required"`
}

var Presets = map[Species]Requirements{
	BeardedDragon: {
		BaskingTempMin: 35, BaskingTempMax: 40,
		CoolSideTempMin: 24, CoolSideTempMax: 29,
		NightTempMin: 20, NightTempMax: 24,
		HumidityMin: 30, HumidityMax: 40,
		UVBRequired: true,
	},
	BallPython: {
		BaskingTempMin: 31, BaskingTempMax: 33,
		CoolSideTempMin: 26, CoolSideTempMax: 28,
		NightTempMin: 24, NightTempMax: 26,
		HumidityMin: 50, HumidityMax: 60,
	},
	CornSnake: {
		BaskingTempMin: 28, BaskingTempMax: 32,
		CoolSideTempMin: 21, CoolSideTempMax: 24,
		NightTempMin: 20, NightTempMax: 23,
		HumidityMin: 40, HumidityMax: 50,
	},
	LeopardGecko: {
		BaskingTempMin: 32, BaskingTempMax: 35,
		CoolSideTempMin: 24, CoolSideTempMax: 27,
		NightTempMin: 21, NightTempMax: 24,
		HumidityMin: 30, HumidityMax: 40,
	},
}

func RequirementsFor(species Species) (Requirements, error) {
	req, ok := Presets[species]
	if !ok {
		return Requirements{}, fmt.Errorf("unknown species %q", species)
	}
	return req, nil
}
