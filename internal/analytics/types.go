package analytics

import (
	"time"

	"github.com/roadwatch-io/roadwatch/internal/risk"
	"github.com/roadwatch-io/roadwatch/internal/session"
)

// User is the account record as the analytics API returns it.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Tier      string    `json:"tier"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// profile converts the wire user into the cached session profile.
func (u User) profile() *session.Profile {
	return &session.Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Tier:      session.Tier(u.Tier),
		CreatedAt: u.CreatedAt,
	}
}

// Hotspot is an area-level casualty cluster.
type Hotspot struct {
	AreaCode      string        `json:"area_code"`
	AreaName      string        `json:"area_name"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	IncidentCount int           `json:"incident_count"`
	DangerScore   float64       `json:"danger_score"`
	Category      risk.Category `json:"risk_category,omitempty"`
}

// School is a school with its nearby incident count.
type School struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	AreaCode      string        `json:"area_code"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	IncidentCount int           `json:"incident_count"`
	Category      risk.Category `json:"risk_category,omitempty"`
}

// Casualty is a single recorded road casualty.
type Casualty struct {
	ID        string    `json:"id"`
	AreaCode  string    `json:"area_code"`
	Severity  string    `json:"severity"`
	Mode      string    `json:"mode"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Date      time.Time `json:"date"`
}

// Summary is the platform-wide statistics record.
type Summary struct {
	TotalCasualties int            `json:"total_casualties"`
	FatalCount      int            `json:"fatal_count"`
	SeriousCount    int            `json:"serious_count"`
	SlightCount     int            `json:"slight_count"`
	YearRange       string         `json:"year_range"`
	ByMode          map[string]int `json:"by_mode,omitempty"`
}
