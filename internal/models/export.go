package models

import "time"

// ExportFile describes a rendered reservation export awaiting download.
type ExportFile struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	Rows        int       `json:"rows"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
