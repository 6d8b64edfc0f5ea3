package model

import "time"

// DownloadRecord describes one file persisted under the output root.
// Its identity is (Company, Filename); the file on disk is the durable record.
type DownloadRecord struct {
	Company      string    `json:"company"`
	Filename     string    `json:"filename"`
	SourceURL    string    `json:"source_url"`
	SizeBytes    int64     `json:"size_bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
	ContentHash  string    `json:"content_hash,omitempty"`
}
