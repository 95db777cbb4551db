package models

import "time"

// SiteReference is the clinical site location data this core reads but never
// mutates; the facility-management service owns the rows.
type SiteReference struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	Latitude             *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude            *float64  `db:"longitude" json:"longitude,omitempty"`
	GeofenceRadiusMeters *float64  `db:"geofence_radius_meters" json:"geofence_radius_meters,omitempty"`
	StrictGeofence       bool      `db:"strict_geofence" json:"strict_geofence"`
	Timezone             *string   `db:"timezone" json:"timezone,omitempty"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// HasCoordinates reports whether the site carries a usable geofence center.
func (s *SiteReference) HasCoordinates() bool {
	return s != nil && s.Latitude != nil && s.Longitude != nil
}
