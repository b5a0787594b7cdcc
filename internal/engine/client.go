// Package engine queries an external open-source routing engine for a
// point-to-point driving duration. The rest of the system only sees the
// Client interface: seconds, or an error when the engine cannot answer.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/urbanmobility/coarse-eta/internal/geo"
)

var (
	ErrUnavailable   = errors.New("routing engine unavailable")
	ErrProtocolParse = errors.New("routing engine protocol")
)

// Client answers a single point-to-point duration query in seconds.
type Client interface {
	PointToPoint(ctx context.Context, start, end geo.Point) (float64, error)
}

// Default ports the engines listen on when routingengine_server names only a
// host.
const (
	osrmPort     = "5000"
	orsPort      = "8082"
	valhallaPort = "8002"
)

// HTTPClient dispatches on the configured engine name: "osrm", "ors" or
// "val" (Valhalla).
type HTTPClient struct {
	engine  string
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func New(name, server string, client *http.Client, log *slog.Logger) (*HTTPClient, error) {
	var port string
	switch name {
	case "osrm":
		port = osrmPort
	case "ors":
		port = orsPort
	case "val":
		port = valhallaPort
	default:
		return nil, fmt.Errorf("unsupported engine %q (want osrm, ors or val)", name)
	}
	if !strings.Contains(server, ":") {
		server += ":" + port
	}
	return &HTTPClient{
		engine:  name,
		baseURL: "http://" + server,
		http:    client,
		log:     log,
	}, nil
}

func (c *HTTPClient) PointToPoint(ctx context.Context, start, end geo.Point) (float64, error) {
	switch c.engine {
	case "osrm":
		return c.osrm(ctx, start, end)
	case "ors":
		return c.ors(ctx, start, end)
	default:
		return c.valhalla(ctx, start, end)
	}
}

// coord serializes with every significant digit so the engine routes the
// exact requested point.
func coord(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}

func (c *HTTPClient) osrm(ctx context.Context, start, end geo.Point) (float64, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=false",
		c.baseURL, coord(start.Lon), coord(start.Lat), coord(end.Lon), coord(end.Lat))

	body, status, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("%w: osrm status %d", ErrUnavailable, status)
	}

	var resp struct {
		Routes []struct {
			Duration float64 `json:"duration"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: osrm: %v", ErrProtocolParse, err)
	}
	if len(resp.Routes) == 0 {
		return 0, fmt.Errorf("%w: osrm returned no routes", ErrUnavailable)
	}
	return resp.Routes[0].Duration, nil
}

func (c *HTTPClient) ors(ctx context.Context, start, end geo.Point) (float64, error) {
	req := struct {
		Coordinates [][2]float64 `json:"coordinates"`
	}{
		Coordinates: [][2]float64{
			{start.Lon, start.Lat},
			{end.Lon, end.Lat},
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("%w: ors request: %v", ErrProtocolParse, err)
	}

	body, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/ors/v2/directions/driving-car", payload)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("%w: ors status %d", ErrUnavailable, status)
	}

	var resp struct {
		Routes []struct {
			Summary struct {
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: ors: %v", ErrProtocolParse, err)
	}
	if len(resp.Routes) == 0 {
		return 0, fmt.Errorf("%w: ors returned no routes", ErrUnavailable)
	}
	return resp.Routes[0].Summary.Duration, nil
}

func (c *HTTPClient) valhalla(ctx context.Context, start, end geo.Point) (float64, error) {
	type location struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	req := struct {
		Locations []location `json:"locations"`
		Costing   string     `json:"costing"`
	}{
		Locations: []location{
			{Lat: start.Lat, Lon: start.Lon},
			{Lat: end.Lat, Lon: end.Lon},
		},
		Costing: "auto",
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("%w: valhalla request: %v", ErrProtocolParse, err)
	}

	// Valhalla reports routing failures in the body with a non-2xx status,
	// so the body is inspected before the status code.
	body, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/route", payload)
	if err != nil {
		return 0, err
	}

	var resp struct {
		ErrorCode *int `json:"error_code"`
		Trip      struct {
			Summary struct {
				Time float64 `json:"time"`
			} `json:"summary"`
		} `json:"trip"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: valhalla: %v", ErrProtocolParse, err)
	}
	if resp.ErrorCode != nil {
		// 442: no route found between the points
		if *resp.ErrorCode == 442 {
			return 0, fmt.Errorf("%w: valhalla found no route", ErrUnavailable)
		}
		return 0, fmt.Errorf("%w: valhalla error_code %d", ErrUnavailable, *resp.ErrorCode)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("%w: valhalla status %d", ErrUnavailable, status)
	}
	return resp.Trip.Summary.Time, nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	c.log.Debug("engine response", "engine", c.engine, "status", resp.StatusCode, "bytes", len(body))
	return body, resp.StatusCode, nil
}
