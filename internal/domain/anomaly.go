package domain

// AnomalyKind identifies a class of detected session anomaly.
type AnomalyKind string

const (
	AnomalyImpossibleTravel AnomalyKind = "impossible_travel"
	AnomalyLocationDrift    AnomalyKind = "location_drift"
	AnomalyIPChange         AnomalyKind = "ip_change"
	AnomalyDeviceChange     AnomalyKind = "device_change"
	AnomalyBehavioral       AnomalyKind = "behavioral"
)

// Anomaly is one detected deviation from a session's last known context.
// Magnitude carries a kind-specific measure: km for travel anomalies,
// implied km/h for impossible travel.
type Anomaly struct {
	Kind        AnomalyKind `json:"kind"`
	Description string      `json:"description"`
	Magnitude   float64     `json:"magnitude"`
}
