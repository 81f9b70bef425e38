package strava

import (
	"time"

	"github.com/ultracoach/reconcile/core"
)

// activityPayload mirrors the fields of Strava's DetailedActivity response
// that the reconciliation engine consumes. Everything else rides along in
// the raw snapshot.
type activityPayload struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	SportType          string   `json:"sport_type"`
	Distance           float64  `json:"distance"`
	MovingTime         float64  `json:"moving_time"`
	StartDate          string   `json:"start_date"`
	AverageHeartrate   *float64 `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64 `json:"max_heartrate,omitempty"`
	TotalElevationGain *float64 `json:"total_elevation_gain,omitempty"`
	Trainer            bool     `json:"trainer"`
}

func (p activityPayload) toDomain(raw map[string]any) core.ExternalActivity {
	activity := core.ExternalActivity{
		ID:                p.ID,
		Name:              p.Name,
		SportType:         p.SportType,
		DistanceMeters:    p.Distance,
		MovingTimeSeconds: p.MovingTime,
		Trainer:           p.Trainer,
		Raw:               raw,
	}
	if parsed, err := time.Parse(time.RFC3339, p.StartDate); err == nil {
		activity.StartDate = parsed.UTC()
	}
	if p.AverageHeartrate != nil {
		value := *p.AverageHeartrate
		activity.AverageHeartRate = &value
	}
	if p.MaxHeartrate != nil {
		value := *p.MaxHeartrate
		activity.MaxHeartRate = &value
	}
	if p.TotalElevationGain != nil {
		value := *p.TotalElevationGain
		activity.ElevationGainMeters = &value
	}
	return activity
}

// tokenResponse is the Strava OAuth token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}
