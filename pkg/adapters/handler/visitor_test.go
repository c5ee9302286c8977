package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want domain.DeviceType
	}{
		{"Empty", "", domain.DeviceUnknown},
		{"Desktop Chrome", desktopUA, domain.DeviceDesktop},
		{"iPhone", mobileUA, domain.DeviceMobile},
		{"Android Phone", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36", domain.DeviceMobile},
		{"Android Tablet", "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", domain.DeviceTablet},
		{"iPad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", domain.DeviceTablet},
		{"Bot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", domain.DeviceUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDevice(tt.ua); got != tt.want {
				t.Errorf("ClassifyDevice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReferrerHost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"https://www.Google.com/search?q=go", "google.com"},
		{"http://news.ycombinator.com/item?id=1", "news.ycombinator.com"},
		{"https://t.co:443/abc", "t.co"},
		{"android-app://com.slack", "com.slack"},
	}
	for _, tt := range tests {
		if got := ReferrerHost(tt.in); got != tt.want {
			t.Errorf("ReferrerHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("salt", "10.0.0.1", desktopUA)
	if len(a) != 32 {
		t.Fatalf("fingerprint length %d", len(a))
	}
	if a != Fingerprint("salt", "10.0.0.1", desktopUA) {
		t.Error("fingerprint is not stable")
	}
	if a == Fingerprint("salt", "10.0.0.2", desktopUA) {
		t.Error("different IPs share a fingerprint")
	}
	if a == Fingerprint("other", "10.0.0.1", desktopUA) {
		t.Error("salt does not change the fingerprint")
	}
}

func TestVisitFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/short/abc", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("User-Agent", mobileUA)
	req.Header.Set("Referer", "https://www.reddit.com/r/golang")

	v := visitFromRequest(req, "abc", "s")
	if v.ShortCode != "abc" || v.DeviceType != domain.DeviceMobile || v.Referrer != "reddit.com" {
		t.Errorf("unexpected visit %+v", v)
	}
	if v.VisitorFingerprint != Fingerprint("s", "192.0.2.10", mobileUA) {
		t.Error("fingerprint should ignore the client port")
	}
	if !v.Timestamp.IsZero() {
		t.Error("timestamp is left for the recorder to stamp")
	}
}
