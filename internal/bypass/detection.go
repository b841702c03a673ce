package bypass

import (
	"bytes"
	"net/http"
	"net/textproto"
	"slices"
	"strings"

	"github.com/FranksOps/burrow/internal/storage"
)

// Detector examines a fetch response to determine if a bot protection mechanism
// blocked or challenged the request.
type Detector func(res *storage.Response) (detected bool, source string)

// Source names reported by the default detectors.
const (
	SourceCloudflare      = "Cloudflare"
	SourceAkamai          = "Akamai"
	SourceDataDome        = "DataDome"
	SourcePerimeterX      = "PerimeterX"
	SourceSogouAntispider = "SogouAntispider"
)

// DefaultDetectors returns the standard list of bot protection detectors.
// The Sogou antispider check runs first since it is the one a Sogou search
// is most likely to hit.
func DefaultDetectors() []Detector {
	return []Detector{
		detectSogouAntispider,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs the response through all provided detectors. It updates the
// response in place with the detection status and returns true if any
// detection triggered.
func Analyze(res *storage.Response, detectors []Detector) bool {
	if res == nil {
		return false
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			res.DetectedBot = true
			res.DetectionSrc = source
			return true
		}
	}
	res.DetectedBot = false
	res.DetectionSrc = ""
	return false
}

// signature describes a vendor block page: any server-header substring,
// any listed header, or any body marker counts, but only on the listed
// status codes.
type signature struct {
	source      string
	statuses    []int
	servers     []string
	headers     []string
	bodyMarkers [][]byte
	// bodyAll markers must all be present for a body match.
	bodyAll [][]byte
}

func (s signature) match(res *storage.Response) bool {
	if !slices.Contains(s.statuses, res.StatusCode) {
		return false
	}

	server := strings.ToLower(getHeader(res.Headers, "Server"))
	for _, sv := range s.servers {
		if strings.Contains(server, sv) {
			return true
		}
	}

	for _, h := range s.headers {
		if getHeader(res.Headers, h) != "" {
			return true
		}
	}

	for _, m := range s.bodyMarkers {
		if bytes.Contains(res.Body, m) {
			return true
		}
	}

	if len(s.bodyAll) > 0 {
		for _, m := range s.bodyAll {
			if !bytes.Contains(res.Body, m) {
				return false
			}
		}
		return true
	}

	return false
}

func (s signature) detector() Detector {
	return func(res *storage.Response) (bool, string) {
		if s.match(res) {
			return true, s.source
		}
		return false, ""
	}
}

var (
	cloudflare = signature{
		source:   SourceCloudflare,
		statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
		servers:  []string{"cloudflare"},
		bodyMarkers: [][]byte{
			[]byte("cf-browser-verification"),
			[]byte("cloudflare-nginx"),
			[]byte("cf-turnstile"),
			[]byte("Attention Required! | Cloudflare"),
		},
	}

	akamai = signature{
		source:   SourceAkamai,
		statuses: []int{http.StatusForbidden},
		servers:  []string{"akamai"},
		// Akamai often returns a generic "Reference #" block page
		bodyAll: [][]byte{[]byte("Reference #"), []byte("Access Denied")},
	}

	dataDome = signature{
		source:      SourceDataDome,
		statuses:    []int{http.StatusForbidden},
		servers:     []string{"datadome"},
		headers:     []string{"X-DataDome", "X-DataDome-Response"},
		bodyMarkers: [][]byte{[]byte("geo.captcha-delivery.com"), []byte("datadome")},
	}

	perimeterX = signature{
		source:   SourcePerimeterX,
		statuses: []int{http.StatusForbidden},
		headers:  []string{"X-Px-Captcha"},
		bodyMarkers: [][]byte{
			[]byte("client.perimeterx.net"),
			[]byte("px-captcha"),
			[]byte("_pxBlock"),
		},
	}

	detectCloudflare = cloudflare.detector()
	detectAkamai     = akamai.detector()
	detectDataDome   = dataDome.detector()
	detectPerimeterX = perimeterX.detector()
)

// sogouAntispiderMarkers appear on the captcha page Sogou serves (with a 200)
// once it decides a client is automated.
var sogouAntispiderMarkers = [][]byte{
	[]byte("seccodeForm"),
	[]byte("seccodeImage"),
	[]byte("antispider/util/seccode"),
}

// detectSogouAntispider catches the redirect to /antispider/ and the captcha
// page itself. Sogou answers these with 200, so status is not considered.
func detectSogouAntispider(res *storage.Response) (bool, string) {
	if strings.Contains(res.FinalURL, "/antispider") {
		return true, SourceSogouAntispider
	}
	if loc := getHeader(res.Headers, "Location"); strings.Contains(loc, "/antispider") {
		return true, SourceSogouAntispider
	}
	for _, m := range sogouAntispiderMarkers {
		if bytes.Contains(res.Body, m) {
			return true, SourceSogouAntispider
		}
	}
	return false, ""
}

func getHeader(headers map[string][]string, key string) string {
	if vals, ok := headers[textproto.CanonicalMIMEHeaderKey(key)]; ok && len(vals) > 0 {
		return vals[0]
	}
	// Case-insensitive fallback for maps not built by net/http
	for k, vals := range headers {
		if strings.EqualFold(k, key) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}
