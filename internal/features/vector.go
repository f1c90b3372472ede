package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
)

// ErrInvalidInput matches every *InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

type Axis int

const (
	Humidity Axis = iota
	WindSpeed
	Temperature
)

// Order is the tuple layout the classifier was trained on.
var Order = [3]Axis{Humidity, WindSpeed, Temperature}

func (a Axis) String() string {
	switch a {
	case Humidity:
		return "humidity"
	case WindSpeed:
		return "wind_speed"
	case Temperature:
		return "temperature"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Label is the Spanish caption used by the page and the export header.
func (a Axis) Label() string {
	switch a {
	case Humidity:
		return "Humedad"
	case WindSpeed:
		return "Viento"
	case Temperature:
		return "Temperatura"
	}
	return a.String()
}

func (a Axis) Unit() string {
	switch a {
	case Humidity:
		return "%"
	case WindSpeed:
		return "km/h"
	case Temperature:
		return "°C"
	}
	return ""
}

// Domain returns the inclusive range accepted for the axis.
func (a Axis) Domain() (min, max float64) {
	switch a {
	case Humidity:
		return common.MinHumidity, common.MaxHumidity
	case WindSpeed:
		return common.MinWindSpeed, common.MaxWindSpeed
	case Temperature:
		return common.MinTemperature, common.MaxTemperature
	}
	return math.NaN(), math.NaN()
}

func (a Axis) Valid() bool {
	return a >= Humidity && a <= Temperature
}

func ParseAxis(s string) (Axis, error) {
	switch s {
	case "humidity", "rh", "humedad":
		return Humidity, nil
	case "wind_speed", "wind", "wspd", "viento":
		return WindSpeed, nil
	case "temperature", "temp", "temperatura":
		return Temperature, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

func (a Axis) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("unknown axis %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(text []byte) error {
	parsed, err := ParseAxis(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Vector holds one reading of the three climatic inputs.
type Vector struct {
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Temperature float64 `json:"temperature"`
}

func New(humidity, windSpeed, temperature float64) Vector {
	return Vector{Humidity: humidity, WindSpeed: windSpeed, Temperature: temperature}
}

func Default() Vector {
	return New(common.DefaultHumidity, common.DefaultWindSpeed, common.DefaultTemperature)
}

// Array returns the values in model order: (humidity, wind_speed, temperature).
func (v Vector) Array() [3]float64 {
	return [3]float64{v.Humidity, v.WindSpeed, v.Temperature}
}

func (v Vector) Get(a Axis) float64 {
	switch a {
	case Humidity:
		return v.Humidity
	case WindSpeed:
		return v.WindSpeed
	case Temperature:
		return v.Temperature
	}
	return math.NaN()
}

// With returns a copy of v with axis a replaced.
func (v Vector) With(a Axis, value float64) Vector {
	switch a {
	case Humidity:
		v.Humidity = value
	case WindSpeed:
		v.WindSpeed = value
	case Temperature:
		v.Temperature = value
	}
	return v
}

// Validate rejects values outside the declared domains. Values are never clamped.
func (v Vector) Validate() error {
	for _, a := range Order {
		if err := CheckAxis(a, v.Get(a)); err != nil {
			return err
		}
	}
	return nil
}

func CheckAxis(a Axis, value float64) error {
	if !a.Valid() {
		return &InvalidInputError{Axis: a, Value: value, Reason: "unknown axis"}
	}
	min, max := a.Domain()
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &InvalidInputError{Axis: a, Value: value, Min: min, Max: max, Reason: "not a finite number"}
	}
	if value < min || value > max {
		return &InvalidInputError{Axis: a, Value: value, Min: min, Max: max}
	}
	return nil
}

type InvalidInputError struct {
	Axis   Axis
	Value  float64
	Min    float64
	Max    float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s %v: %s", e.Axis, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s %v: outside [%v, %v] %s", e.Axis, e.Value, e.Min, e.Max, e.Axis.Unit())
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
