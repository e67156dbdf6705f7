package models

import "time"

// SiteSettings holds the admin-editable player defaults
type SiteSettings struct {
	ID               string    `json:"id" db:"id"`
	SiteName         string    `json:"site_name" db:"site_name"`
	BufferingGoalSec float64   `json:"buffering_goal_sec" db:"buffering_goal_sec"`
	Autoplay         bool      `json:"autoplay" db:"autoplay"`
	DefaultQualityCap string   `json:"default_quality_cap" db:"default_quality_cap"`
	ProgressSaveSec  int       `json:"progress_save_sec" db:"progress_save_sec"`
	UpdatedBy        string    `json:"updated_by" db:"updated_by"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
