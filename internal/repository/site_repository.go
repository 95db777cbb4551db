package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinical-clock-api/internal/models"
)

const siteColumns = `id, name, latitude, longitude, geofence_radius_meters, strict_geofence, timezone, updated_at`

// SiteRepository reads clinical site reference data. The rows are owned by
// the facility-management service; this core never writes them.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository constructs the repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// FindByID returns the site with the given identifier, nil when absent.
func (r *SiteRepository) FindByID(ctx context.Context, siteID string) (*models.SiteReference, error) {
	query := fmt.Sprintf("SELECT %s FROM clinical_sites WHERE id = $1", siteColumns)
	var site models.SiteReference
	if err := r.db.GetContext(ctx, &site, query, siteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find site %s: %w", siteID, err)
	}
	return &site, nil
}

// FindByRotation resolves the site assigned to a rotation, nil when the
// rotation is unknown or carries no site.
func (r *SiteRepository) FindByRotation(ctx context.Context, rotationID string) (*models.SiteReference, error) {
	query := `SELECT s.id, s.name, s.latitude, s.longitude, s.geofence_radius_meters, s.strict_geofence, s.timezone, s.updated_at
FROM clinical_sites s
JOIN rotations r ON r.site_id = s.id
WHERE r.id = $1`
	var site models.SiteReference
	if err := r.db.GetContext(ctx, &site, query, rotationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find site for rotation %s: %w", rotationID, err)
	}
	return &site, nil
}
