package models

import "time"

type QRType string

const (
	QRTypeStatic  QRType = "STATIC"
	QRTypeDynamic QRType = "DYNAMIC"
)

const (
	PatternSquare  = "square"
	PatternDots    = "dots"
	PatternRounded = "rounded"

	EyeSquare = "square"
	EyeCircle = "circle"
)

type QRCode struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	Hash            string    `json:"hash" db:"hash"`
	ShortCode       *string   `json:"short_code" db:"short_code"`
	Name            string    `json:"name" db:"name"`
	URL             string    `json:"url" db:"url"`
	URL2            string    `json:"url2,omitempty" db:"url2"`
	Type            QRType    `json:"type" db:"type"`
	Color           string    `json:"color" db:"color"`
	BackgroundColor string    `json:"background_color" db:"background_color"`
	PatternStyle    string    `json:"pattern_style" db:"pattern_style"`
	EyeStyle        string    `json:"eye_style" db:"eye_style"`
	EyeColor        string    `json:"eye_color" db:"eye_color"`
	LogoURL         string    `json:"logo_url,omitempty" db:"logo_url"`
	ImageURL        string    `json:"image_url,omitempty" db:"image_url"`
	ImagePath       string    `json:"image_path,omitempty" db:"image_path"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	TotalScans      int64     `json:"total_scans" db:"total_scans"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	// TrackingURL is what the QR image encodes; derived, never stored.
	TrackingURL string `json:"tracking_url,omitempty" db:"-"`
}

// QRCodeWithCount is a list entry annotated with the number of recorded scans.
type QRCodeWithCount struct {
	QRCode
	ScanCount int64 `json:"scan_count"`
}

type Scan struct {
	ID             string    `json:"id" db:"id"`
	QRCodeID       string    `json:"qr_code_id" db:"qr_code_id"`
	IPAddress      string    `json:"ip_address" db:"ip_address"`
	UserAgent      string    `json:"user_agent" db:"user_agent"`
	Referer        string    `json:"referer,omitempty" db:"referer"`
	AcceptLanguage string    `json:"accept_language,omitempty" db:"accept_language"`
	Language       string    `json:"language,omitempty" db:"language"`
	Country        string    `json:"country" db:"country"`
	City           string    `json:"city" db:"city"`
	Region         string    `json:"region,omitempty" db:"region"`
	Timezone       string    `json:"timezone,omitempty" db:"timezone"`
	Latitude       *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude      *float64  `json:"longitude,omitempty" db:"longitude"`
	DeviceType     string    `json:"device_type" db:"device_type"`
	Browser        string    `json:"browser" db:"browser"`
	OS             string    `json:"os" db:"os"`
	ScannedAt      time.Time `json:"scanned_at" db:"scanned_at"`
}

type CreateQRCodeRequest struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	URL2            string `json:"url2,omitempty"`
	Type            string `json:"type,omitempty"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	PatternStyle    string `json:"pattern_style,omitempty"`
	EyeStyle        string `json:"eye_style,omitempty"`
	EyeColor        string `json:"eye_color,omitempty"`
	LogoURL         string `json:"logo_url,omitempty"`
}

// UpdateQRCodeRequest carries a partial update; nil fields are left untouched.
type UpdateQRCodeRequest struct {
	Name     *string `json:"name,omitempty"`
	URL      *string `json:"url,omitempty"`
	URL2     *string `json:"url2,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type Analytics struct {
	QRCode         QRCode         `json:"qrCode"`
	TotalScans     int            `json:"totalScans"`
	ScansByDate    map[string]int `json:"scansByDate"`
	ScansByCountry map[string]int `json:"scansByCountry"`
	ScansByDevice  map[string]int `json:"scansByDevice"`
	ScansByBrowser map[string]int `json:"scansByBrowser"`
	RecentScans    []Scan         `json:"recentScans"`
}

type SessionResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
