package domain

import "time"

// DeviceType is the coarse device category of a visitor.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceUnknown DeviceType = "unknown"
)

// ParseDeviceType maps free-form input onto a known category.
func ParseDeviceType(s string) DeviceType {
	switch DeviceType(s) {
	case DeviceDesktop, DeviceMobile, DeviceTablet:
		return DeviceType(s)
	}
	return DeviceUnknown
}

// Visit represents a click on a short link
type Visit struct {
	ID                 string     `json:"id"`
	ShortCode          string     `json:"shortCode"`
	Timestamp          time.Time  `json:"timestamp"`
	VisitorFingerprint string     `json:"visitorFingerprint"` // opaque hash, never raw IP
	DeviceType         DeviceType `json:"deviceType"`
	Referrer           string     `json:"referrer"` // empty means direct traffic
}

// VisitInput is what a redirect hands to the recorder.
// A zero Timestamp means "now".
type VisitInput struct {
	ShortCode          string
	Timestamp          time.Time
	VisitorFingerprint string
	DeviceType         DeviceType
	Referrer           string
}

// TimeBucket is one occupied interval of the click series.
type TimeBucket struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}

// ReferrerRank is a row of the ranked referrer table.
type ReferrerRank struct {
	Source     string  `json:"source"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AnalyticsSnapshot is the dashboard view of one link's traffic at a point in time.
type AnalyticsSnapshot struct {
	ShortCode      string               `json:"shortCode"`
	DeviceType     map[DeviceType]int64 `json:"deviceType"`
	TimeSeries     []TimeBucket         `json:"timeSeries"`
	Referrers      map[string]int64     `json:"referrers"`
	TopReferrers   []ReferrerRank       `json:"topReferrers,omitempty"`
	TotalVisits    int64                `json:"totalVisits"`
	UniqueVisitors int64                `json:"uniqueVisitors"`
	BucketWidth    time.Duration        `json:"-"`
}
