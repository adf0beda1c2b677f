// Package bypass recognises bot protection challenge pages served in place
// of a provider's API response.
package bypass

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/FranksOps/quarry/pkg/httpclient"
)

// Response is the part of a rejected response a Detector inspects.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a response is a protection challenge and names
// the vendor.
type Detector func(res Response) (detected bool, vendor string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs res through detectors and returns the first vendor matched,
// or "".
func Analyze(res Response, detectors []Detector) string {
	for _, d := range detectors {
		if detected, vendor := d(res); detected {
			return vendor
		}
	}
	return ""
}

// Detect inspects the *httpclient.StatusError in err's chain, if any, with
// the default detectors.
func Detect(err error) string {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return ""
	}
	return Analyze(Response{
		StatusCode: statusErr.Code,
		Header:     statusErr.Header,
		Body:       statusErr.Body,
	}, DefaultDetectors())
}

func detectCloudflare(res Response) (bool, string) {
	// 403 and 503 are both used for challenges
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "akamai") {
		return true, "Akamai"
	}
	// generic "Reference #" block page
	if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "datadome") ||
		res.Header.Get("X-DataDome") != "" || res.Header.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Header.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bytes.Contains(res.Body, []byte("client.perimeterx.net")) ||
		bytes.Contains(res.Body, []byte("px-captcha")) ||
		bytes.Contains(res.Body, []byte("_pxBlock")) {
		return true, "PerimeterX"
	}
	return false, ""
}
