package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/mssola/useragent"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
)

// ClassifyDevice maps a User-Agent header onto a device category.
func ClassifyDevice(uaHeader string) domain.DeviceType {
	if strings.TrimSpace(uaHeader) == "" {
		return domain.DeviceUnknown
	}
	ua := useragent.New(uaHeader)
	if ua.Bot() {
		return domain.DeviceUnknown
	}
	switch {
	case ua.Platform() == "iPad", strings.Contains(uaHeader, "iPad"), strings.Contains(uaHeader, "Tablet"):
		return domain.DeviceTablet
	case strings.Contains(ua.OS(), "Android") && !strings.Contains(uaHeader, "Mobile"):
		// Android tablets omit the "Mobile" token.
		return domain.DeviceTablet
	case ua.Mobile(), strings.Contains(uaHeader, "Mobile"):
		return domain.DeviceMobile
	default:
		return domain.DeviceDesktop
	}
}

// ReferrerHost reduces a Referer header to its host, "" for direct traffic.
func ReferrerHost(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return referer
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Fingerprint hashes client IP and User-Agent so no raw identity is stored.
func Fingerprint(salt, ip, userAgent string) string {
	sum := sha256.Sum256([]byte(salt + "|" + ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])[:32]
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// visitFromRequest builds the visit for code from a redirect request.
func visitFromRequest(r *http.Request, code, salt string) domain.VisitInput {
	userAgent := r.UserAgent()
	return domain.VisitInput{
		ShortCode:          code,
		VisitorFingerprint: Fingerprint(salt, clientIP(r), userAgent),
		DeviceType:         ClassifyDevice(userAgent),
		Referrer:           ReferrerHost(r.Header.Get("Referer")),
	}
}
