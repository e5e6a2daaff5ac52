package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avelins/radioatlas/pkg/logger"
	"github.com/google/uuid"
)

// Client is a typed wrapper over the remote station directory service.
// It is stateless: every failure surfaces to the caller and is never retried
// internally; retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *logger.Logger
}

// NewClient creates a new directory client
func NewClient(baseURL, userAgent string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: userAgent,
		logger:    log.Named("directory"),
	}
}

// FetchLightCatalog fetches up to limit stations ordered by vote count
// descending and projects them to light records. With healthyGeoOnly set the
// directory is asked to return only stations that passed their last stream
// check and carry coordinates.
func (c *Client) FetchLightCatalog(ctx context.Context, limit int, healthyGeoOnly bool) ([]StationLight, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "votes")
	params.Set("reverse", "true")
	if healthyGeoOnly {
		params.Set("has_geo_info", "true")
		params.Set("hidebroken", "true")
	}

	stations, err := c.fetchStations(ctx, "light catalog", "/stations/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	light := make([]StationLight, 0, len(stations))
	for _, s := range stations {
		light = append(light, s.Light())
	}

	c.logger.Debug("Fetched light catalog",
		logger.Int("count", len(light)),
		logger.Int("limit", limit),
	)

	return light, nil
}

// FetchCountryCatalog fetches up to limit stations for a single country code,
// ordered by vote count descending, as light records.
func (c *Client) FetchCountryCatalog(ctx context.Context, countryCode string, limit int) ([]StationLight, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "votes")
	params.Set("reverse", "true")
	params.Set("has_geo_info", "true")
	params.Set("hidebroken", "true")

	path := "/stations/bycountrycodeexact/" + url.PathEscape(countryCode) + "?" + params.Encode()
	stations, err := c.fetchStations(ctx, "country catalog", path)
	if err != nil {
		return nil, err
	}

	light := make([]StationLight, 0, len(stations))
	for _, s := range stations {
		light = append(light, s.Light())
	}
	return light, nil
}

// FetchFullRecord fetches the full record for a single station id.
// Returns ErrStationNotFound if the id does not resolve to a valid record.
func (c *Client) FetchFullRecord(ctx context.Context, id string) (*Station, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: malformed id %q", ErrStationNotFound, id)
	}

	body, err := c.get(ctx, "full record", "/stations/byuuid/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var wire []stationJSON
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, unavailable("full record", fmt.Errorf("failed to parse JSON: %w", err))
	}
	if len(wire) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}

	station, err := wire[0].toStation()
	if err != nil {
		c.logger.Warn("Rejecting malformed station record",
			logger.String("station_id", id),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}

	return station, nil
}

// SearchAdvanced runs a filtered station search and returns full records.
func (c *Client) SearchAdvanced(ctx context.Context, p SearchParams) ([]*Station, error) {
	return c.fetchStations(ctx, "search", "/stations/search?"+p.values().Encode())
}

// RegisterClick reports a playback start for a station. Best-effort: callers
// are expected to swallow the returned error.
func (c *Client) RegisterClick(ctx context.Context, id string) error {
	_, err := c.get(ctx, "click", "/url/"+url.PathEscape(id))
	return err
}

// Vote casts a popularity vote for a station.
func (c *Client) Vote(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/vote/"+url.PathEscape(id), nil)
	if err != nil {
		return unavailable("vote", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable("vote", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return unavailable("vote", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	return nil
}

// Countries lists the directory's country facets.
func (c *Client) Countries(ctx context.Context) ([]Facet, error) {
	return c.fetchFacets(ctx, "countries", "/countries")
}

// Languages lists the directory's language facets.
func (c *Client) Languages(ctx context.Context) ([]Facet, error) {
	return c.fetchFacets(ctx, "languages", "/languages")
}

// Tags lists the directory's tag facets.
func (c *Client) Tags(ctx context.Context) ([]Facet, error) {
	return c.fetchFacets(ctx, "tags", "/tags")
}

// fetchStations fetches a path returning an array of station records,
// validating each and skipping the ones that fail validation.
func (c *Client) fetchStations(ctx context.Context, op, path string) ([]*Station, error) {
	body, err := c.get(ctx, op, path)
	if err != nil {
		return nil, err
	}

	var wire []stationJSON
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, unavailable(op, fmt.Errorf("failed to parse JSON: %w", err))
	}

	stations := make([]*Station, 0, len(wire))
	skipped := 0
	for i := range wire {
		s, err := wire[i].toStation()
		if err != nil {
			skipped++
			continue
		}
		stations = append(stations, s)
	}

	if skipped > 0 {
		c.logger.Debug("Skipped malformed station records",
			logger.String("op", op),
			logger.Int("skipped", skipped),
			logger.Int("kept", len(stations)),
		)
	}

	return stations, nil
}

func (c *Client) fetchFacets(ctx context.Context, op, path string) ([]Facet, error) {
	body, err := c.get(ctx, op, path)
	if err != nil {
		return nil, err
	}

	var facets []Facet
	if err := json.Unmarshal(body, &facets); err != nil {
		return nil, unavailable(op, fmt.Errorf("failed to parse JSON: %w", err))
	}
	return facets, nil
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, unavailable(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("Fetching from directory",
		logger.String("op", op),
		logger.String("url", reqURL),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(op, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(op, fmt.Errorf("failed to read response body: %w", err))
	}
	return body, nil
}

func (p SearchParams) values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("name", p.Name)
	set("country", p.Country)
	set("countrycode", p.CountryCode)
	set("state", p.State)
	set("language", p.Language)
	set("tag", p.Tag)
	set("codec", p.Codec)
	if p.BitrateMin > 0 {
		v.Set("bitrateMin", strconv.Itoa(p.BitrateMin))
	}
	if p.BitrateMax > 0 {
		v.Set("bitrateMax", strconv.Itoa(p.BitrateMax))
	}
	set("order", string(p.Order))
	if p.Reverse {
		v.Set("reverse", "true")
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.HideBroken {
		v.Set("hidebroken", "true")
	}
	if p.HasGeoInfo {
		v.Set("has_geo_info", "true")
	}
	return v
}
