package directory

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Station is the full record for a single audio stream source, as returned
// by the directory service. Records are immutable once parsed; the directory
// is read-only from this client's perspective.
type Station struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	StreamURL       string   `json:"stream_url"`
	ResolvedURL     string   `json:"resolved_url"`
	HomepageURL     string   `json:"homepage_url"`
	FaviconURL      string   `json:"favicon_url"`
	Tags            []string `json:"tags"`
	Country         string   `json:"country"`
	CountryCode     string   `json:"country_code"`
	State           string   `json:"state"`
	Language        string   `json:"language"`
	Votes           int      `json:"votes"`
	Bitrate         int      `json:"bitrate"`
	Codec           string   `json:"codec"`
	ClickCount      int      `json:"click_count"`
	LastCheckOK     bool     `json:"last_check_ok"`
	LastCheckTime   string   `json:"last_check_time"`
	Lat             *float64 `json:"lat"`
	Lon             *float64 `json:"lon"`
	HasExtendedInfo bool     `json:"has_extended_info"`
}

// StationLight is the minimal projection of a station used for map placement.
type StationLight struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	FaviconURL  string   `json:"favicon_url"`
	Votes       int      `json:"votes"`
	LastCheckOK bool     `json:"last_check_ok"`
}

// HasGeo reports whether the station carries usable coordinates.
func (s *Station) HasGeo() bool {
	return s.Lat != nil && s.Lon != nil
}

// IsHealthy reports whether the directory's last stream check succeeded.
func (s *Station) IsHealthy() bool {
	return s.LastCheckOK
}

// HasGeo reports whether the light record carries usable coordinates.
func (s *StationLight) HasGeo() bool {
	return s.Lat != nil && s.Lon != nil
}

// IsHealthy reports whether the directory's last stream check succeeded.
func (s *StationLight) IsHealthy() bool {
	return s.LastCheckOK
}

// Light projects a full record down to the fields needed for map placement.
func (s *Station) Light() StationLight {
	return StationLight{
		ID:          s.ID,
		Name:        s.Name,
		Lat:         s.Lat,
		Lon:         s.Lon,
		Country:     s.Country,
		CountryCode: s.CountryCode,
		FaviconURL:  s.FaviconURL,
		Votes:       s.Votes,
		LastCheckOK: s.LastCheckOK,
	}
}

// Facet is a directory aggregate such as a country, language, or tag,
// with the number of stations carrying it.
type Facet struct {
	Name         string `json:"name"`
	StationCount int    `json:"stationcount"`
}

// stationJSON mirrors the directory service's wire format for a station
// record. Geo coordinates are nullable; everything else follows the upstream
// field names verbatim.
type stationJSON struct {
	StationUUID     string   `json:"stationuuid"`
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	URLResolved     string   `json:"url_resolved"`
	Homepage        string   `json:"homepage"`
	Favicon         string   `json:"favicon"`
	Tags            string   `json:"tags"`
	Country         string   `json:"country"`
	CountryCode     string   `json:"countrycode"`
	State           string   `json:"state"`
	Language        string   `json:"language"`
	Votes           int      `json:"votes"`
	Bitrate         int      `json:"bitrate"`
	Codec           string   `json:"codec"`
	ClickCount      int      `json:"clickcount"`
	LastCheckOK     int      `json:"lastcheckok"`
	LastCheckTime   string   `json:"lastchecktime_iso8601"`
	GeoLat          *float64 `json:"geo_lat"`
	GeoLong         *float64 `json:"geo_long"`
	HasExtendedInfo bool     `json:"has_extended_info"`
}

// toStation validates a wire record and converts it to a Station.
// A record must carry a UUID-shaped id, a name, and at least one stream URL.
func (w *stationJSON) toStation() (*Station, error) {
	if _, err := uuid.Parse(w.StationUUID); err != nil {
		return nil, fmt.Errorf("invalid station id %q: %w", w.StationUUID, err)
	}
	if strings.TrimSpace(w.Name) == "" {
		return nil, fmt.Errorf("station %s has no name", w.StationUUID)
	}
	if w.URL == "" && w.URLResolved == "" {
		return nil, fmt.Errorf("station %s has no stream url", w.StationUUID)
	}

	var tags []string
	if w.Tags != "" {
		for _, t := range strings.Split(w.Tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	return &Station{
		ID:              w.StationUUID,
		Name:            strings.TrimSpace(w.Name),
		StreamURL:       w.URL,
		ResolvedURL:     w.URLResolved,
		HomepageURL:     w.Homepage,
		FaviconURL:      w.Favicon,
		Tags:            tags,
		Country:         w.Country,
		CountryCode:     w.CountryCode,
		State:           w.State,
		Language:        w.Language,
		Votes:           w.Votes,
		Bitrate:         w.Bitrate,
		Codec:           w.Codec,
		ClickCount:      w.ClickCount,
		LastCheckOK:     w.LastCheckOK == 1,
		LastCheckTime:   w.LastCheckTime,
		Lat:             w.GeoLat,
		Lon:             w.GeoLong,
		HasExtendedInfo: w.HasExtendedInfo,
	}, nil
}

// SortKey is a directory-side ordering key for search results.
type SortKey string

const (
	SortByName   SortKey = "name"
	SortByVotes  SortKey = "votes"
	SortByClicks SortKey = "clickcount"
	SortRandom   SortKey = "random"
)

// SearchParams are the filter parameters for an advanced station search.
// Zero values are omitted from the request.
type SearchParams struct {
	Name        string
	Country     string
	CountryCode string
	State       string
	Language    string
	Tag         string
	Codec       string
	BitrateMin  int
	BitrateMax  int
	Order       SortKey
	Reverse     bool
	Offset      int
	Limit       int
	HideBroken  bool
	HasGeoInfo  bool
}
