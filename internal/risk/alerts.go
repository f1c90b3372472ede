// Package risk turns raw slider readings into a wildfire risk evaluation:
// threshold alerts, the classifier's label and probability, and the
// read-only sensitivity sweeps used for charts.
package risk

import (
	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
)

// Alert is a qualitative warning raised when a single reading crosses its
// reference threshold. Alerts are independent of the model's decision.
type Alert string

const (
	AlertCriticalHumidity Alert = "critical humidity"
	AlertHighTemperature  Alert = "high temperature"
	AlertStrongWind       Alert = "strong wind"
)

// AllAlerts lists every alert in canonical order.
var AllAlerts = []Alert{AlertCriticalHumidity, AlertHighTemperature, AlertStrongWind}

// Message is the Spanish text shown next to the alert.
func (a Alert) Message() string {
	switch a {
	case AlertCriticalHumidity:
		return "Humedad crítica (< 40%)"
	case AlertHighTemperature:
		return "Temperatura elevada (> 30 °C)"
	case AlertStrongWind:
		return "Viento fuerte (> 25 km/h)"
	}
	return string(a)
}

// AlertSet holds alerts in canonical order without duplicates.
type AlertSet []Alert

func (s AlertSet) Has(a Alert) bool {
	for _, x := range s {
		if x == a {
			return true
		}
	}
	return false
}

func (s AlertSet) Len() int { return len(s) }

func (s AlertSet) Strings() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = string(a)
	}
	return out
}

// ComputeAlerts checks the reading against the fixed reference thresholds.
// Every crossed threshold is reported; the result is empty (never nil) when
// none is crossed.
func ComputeAlerts(v features.Vector) AlertSet {
	set := AlertSet{}
	if v.Humidity < common.HumidityFloor {
		set = append(set, AlertCriticalHumidity)
	}
	if v.Temperature > common.TemperatureCeiling {
		set = append(set, AlertHighTemperature)
	}
	if v.WindSpeed > common.WindCeiling {
		set = append(set, AlertStrongWind)
	}
	return set
}
