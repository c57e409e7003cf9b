package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yegors/skyview/pkg/logger"
)

// Source types
const (
	SourceLocal   = "local"
	SourceOpenSky = "opensky"
)

const (
	// DefaultOpenSkyURL is the OpenSky state vector endpoint
	DefaultOpenSkyURL = "https://opensky-network.org/api/states/all"
	// DefaultTokenURL is the OpenSky OAuth2 client credentials endpoint
	DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	fileTokenLifetime = 29 * time.Minute
)

// BBox is an OpenSky query area in degrees
type BBox struct {
	LaMin, LoMin, LaMax, LoMax float64
}

// IsZero reports whether no box was configured
func (b BBox) IsZero() bool {
	return b.LaMin == 0 && b.LoMin == 0 && b.LaMax == 0 && b.LoMax == 0
}

// BBoxAround derives a box of radiusNM half size around a point
func BBoxAround(lat, lon, radiusNM float64) BBox {
	latDeg := radiusNM / 60.0
	lonDeg := radiusNM / (60.0 * math.Cos(lat*math.Pi/180.0))
	return BBox{
		LaMin: lat - latDeg,
		LaMax: lat + latDeg,
		LoMin: lon - lonDeg,
		LoMax: lon + lonDeg,
	}
}

// ClientConfig selects and parameterises the ADS-B source
type ClientConfig struct {
	SourceType      string
	LocalSourceURL  string
	OpenSkyURL      string
	CredentialsPath string // OpenSky credentials JSON; anonymous when absent
	BBox            BBox   // explicit OpenSky box; derived from the station when zero
	StationLat      float64
	StationLon      float64
	SearchRadiusNM  float64
	Timeout         time.Duration
}

// Client is responsible for fetching ADS-B data from the source
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time

	// Cached OpenSky OAuth2 token
	token       string
	tokenExpiry time.Time
	tokenMu     sync.Mutex
}

// NewClient creates a new ADS-B client
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.OpenSkyURL == "" {
		cfg.OpenSkyURL = DefaultOpenSkyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.Named("adsb-cli"),
		now:        time.Now,
	}
}

// FetchData fetches ADS-B data from the configured source
func (c *Client) FetchData(ctx context.Context) (*RawAircraftData, error) {
	switch c.cfg.SourceType {
	case SourceLocal:
		return c.fetchLocalData(ctx)
	case SourceOpenSky:
		return c.fetchOpenSkyData(ctx)
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.cfg.SourceType)
	}
}

// fetchLocalData reads aircraft.json from a dump1090 / tar1090 receiver
func (c *Client) fetchLocalData(ctx context.Context) (*RawAircraftData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.LocalSourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching local ADS-B data", logger.String("url", c.cfg.LocalSourceURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data RawAircraftData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if data.Now == 0 {
		data.Now = float64(c.now().Unix())
	}
	for i := range data.Aircraft {
		data.Aircraft[i].SourceType = SourceLocal
	}

	c.logger.Debug("Successfully fetched local ADS-B data",
		logger.Int("aircraft_count", len(data.Aircraft)),
		logger.Int("message_count", data.Messages))

	return &data, nil
}

func (c *Client) bbox() (BBox, error) {
	if !c.cfg.BBox.IsZero() {
		return c.cfg.BBox, nil
	}
	if c.cfg.SearchRadiusNM <= 0 {
		return BBox{}, errors.New("search radius must be positive for OpenSky bounding box derivation")
	}
	return BBoxAround(c.cfg.StationLat, c.cfg.StationLon, c.cfg.SearchRadiusNM), nil
}

// fetchOpenSkyData fetches state vectors from the OpenSky REST API.
//
// Authentication:
//   - a credentials file with access_token is used directly
//   - otherwise client_id and client_secret are exchanged for a token
//   - without a credentials file the request is anonymous and rate limited
func (c *Client) fetchOpenSkyData(ctx context.Context) (*RawAircraftData, error) {
	box, err := c.bbox()
	if err != nil {
		return nil, err
	}

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lamin", fmt.Sprintf("%f", box.LaMin))
	q.Set("lomin", fmt.Sprintf("%f", box.LoMin))
	q.Set("lamax", fmt.Sprintf("%f", box.LaMax))
	q.Set("lomax", fmt.Sprintf("%f", box.LoMax))
	urlStr := c.cfg.OpenSkyURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSky request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Fetching OpenSky ADS-B data", logger.String("url", urlStr))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Unexpected OpenSky status code",
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return nil, fmt.Errorf("unexpected opensky status code: %d", resp.StatusCode)
	}

	var osResp struct {
		Time   int64   `json:"time"`
		States [][]any `json:"states"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&osResp); err != nil {
		return nil, fmt.Errorf("failed to parse opensky JSON: %w", err)
	}

	aircraft := make([]Target, 0, len(osResp.States))
	for _, s := range osResp.States {
		aircraft = append(aircraft, openSkyTarget(s, osResp.Time))
	}

	data := &RawAircraftData{
		Now:      float64(osResp.Time),
		Messages: len(aircraft),
		Aircraft: aircraft,
	}

	c.logger.Debug("Successfully fetched OpenSky ADS-B data",
		logger.Int("aircraft_count", len(data.Aircraft)))

	return data, nil
}

// openSkyTarget converts one states/all row, indexed as in the OpenSky docs
func openSkyTarget(s []any, now int64) Target {
	str := func(i int) string {
		if len(s) > i {
			if v, ok := s[i].(string); ok {
				return v
			}
		}
		return ""
	}
	num := func(i int) (float64, bool) {
		if len(s) > i {
			if v, ok := s[i].(float64); ok {
				return v, true
			}
		}
		return 0, false
	}
	val := func(i int) float64 {
		v, _ := num(i)
		return v
	}

	var onGround bool
	if len(s) > 8 {
		onGround, _ = s[8].(bool)
	}

	// seen_pos from time_position, falling back to last_contact
	var seenPos float64
	if tp, ok := num(3); ok {
		seenPos = float64(now) - tp
	} else if lc, ok := num(4); ok {
		seenPos = float64(now) - lc
	}
	if seenPos < 0 {
		seenPos = 0
	}

	// meters -> feet, m/s -> knots, m/s -> ft/min
	return Target{
		Hex:        strings.ToLower(strings.TrimSpace(str(0))),
		Flight:     str(1),
		Lon:        val(5),
		Lat:        val(6),
		AltBaro:    NewFlexibleFloat(val(7) * 3.28084),
		GS:         val(9) * 1.943844,
		Track:      val(10),
		BaroRate:   val(11) * 196.850394,
		AltGeom:    val(13) * 3.28084,
		Squawk:     str(14),
		Category:   fmt.Sprintf("%d", int(val(17))),
		SeenPos:    seenPos,
		SourceType: SourceOpenSky,
		OnGround:   &onGround,
	}
}

// bearerToken returns a cached token or loads one from the credentials
// file. An empty token means anonymous access.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	credPath := c.cfg.CredentialsPath
	if credPath == "" {
		credPath = "opensky/credentials.json"
	}
	b, err := os.ReadFile(credPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("OpenSky credentials file not found - proceeding as anonymous (rate limits may apply)",
				logger.String("path", credPath))
			return "", nil
		}
		return "", fmt.Errorf("failed to read opensky credentials: %w", err)
	}

	var credMap map[string]any
	if err := json.Unmarshal(b, &credMap); err != nil {
		return "", fmt.Errorf("invalid opensky credentials JSON: %w", err)
	}

	if tok := firstString(credMap, "access_token", "access-token", "accessToken"); tok != "" {
		c.token = tok
		c.tokenExpiry = c.now().Add(fileTokenLifetime)
		return tok, nil
	}

	clientID := firstString(credMap, "client_id", "client-id", "clientId")
	clientSecret := firstString(credMap, "client_secret", "client-secret", "clientSecret")
	if clientID == "" || clientSecret == "" {
		return "", errors.New("opensky credentials must contain access_token or client_id+client_secret")
	}
	tokenURL := firstString(credMap, "token_url", "token-url", "tokenUrl")
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	tok, expiresIn, err := c.requestToken(ctx, tokenURL, clientID, clientSecret)
	if err != nil {
		return "", err
	}

	expiry := c.now().Add(fileTokenLifetime)
	if expiresIn > 60 {
		expiry = c.now().Add(time.Duration(expiresIn-30) * time.Second)
	}
	c.token = tok
	c.tokenExpiry = expiry
	return tok, nil
}

func (c *Client) requestToken(ctx context.Context, tokenURL, clientID, clientSecret string) (string, int, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create opensky token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug("Requesting OpenSky OAuth2 token", logger.String("token_url", tokenURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to request opensky token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("opensky token endpoint error: %d", resp.StatusCode)
	}

	var tokResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode opensky token response: %w", err)
	}
	if tokResp.AccessToken == "" {
		return "", 0, errors.New("opensky token response did not contain access_token")
	}
	return tokResp.AccessToken, tokResp.ExpiresIn, nil
}

// firstString picks the first non-empty string among several spellings
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
