package models

import "time"

// Notice is an administrator announcement, optionally shown as a popup.
type Notice struct {
	ID        string    `db:"id" json:"id"`
	Popup     bool      `db:"popup" json:"popup"`
	StartAt   time.Time `db:"start_at" json:"start"`
	EndAt     time.Time `db:"end_at" json:"end"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NoticeFilter narrows notice listings. ActiveAt keeps notices whose window contains it.
type NoticeFilter struct {
	ActiveAt *time.Time
	Popup    *bool
	Page     int
	PageSize int
}

// ReportCategory classifies user reports.
type ReportCategory string

const (
	ReportCategoryImprovement ReportCategory = "IMPROVEMENT"
	ReportCategoryInquiry     ReportCategory = "INQUIRY"
)

// Report is user feedback addressed to administrators.
type Report struct {
	ID           string         `db:"id" json:"id"`
	ReporterID   string         `db:"reporter_id" json:"reporter_id"`
	ReporterName string         `db:"reporter_name" json:"reporter_name,omitempty"`
	Category     ReportCategory `db:"category" json:"category"`
	Title        string         `db:"title" json:"title"`
	Content      string         `db:"content" json:"content"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ReportFilter narrows report listings. An empty ReporterID lists everything.
type ReportFilter struct {
	ReporterID string
	Category   *ReportCategory
	Page       int
	PageSize   int
}

// Comment is a reply on a report.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	ReportID   string    `db:"report_id" json:"report_id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name,omitempty"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
