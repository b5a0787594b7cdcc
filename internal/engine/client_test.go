package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/urbanmobility/coarse-eta/internal/geo"
)

var (
	start = geo.Point{Lon: -73.95267486572266, Lat: 40.723175048828125}
	end   = geo.Point{Lon: -73.92391967773438, Lat: 40.76137924194336}
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newClient(t *testing.T, name string, ts *httptest.Server) *HTTPClient {
	t.Helper()
	c, err := New(name, strings.TrimPrefix(ts.URL, "http://"), ts.Client(), discard())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// every coordinate must survive serialization bit-exact
func TestCoordRoundTrip(t *testing.T) {
	for _, v := range []float64{start.Lon, start.Lat, end.Lon, end.Lat, 0, -180, 179.99999999999997, 1.0 / 3.0} {
		s := coord(v)
		back, err := strconv.ParseFloat(s, 64)
		if err != nil {
			t.Fatalf("coord(%v) = %q: %v", v, s, err)
		}
		if back != v {
			t.Errorf("coord(%v) = %q does not round-trip (got %v)", v, s, back)
		}
	}
}

func TestNew_UnsupportedEngine(t *testing.T) {
	if _, err := New("graphhopper", "localhost", http.DefaultClient, discard()); err == nil {
		t.Fatal("unsupported engine accepted")
	}
}

func TestNew_DefaultPorts(t *testing.T) {
	cases := map[string]string{
		"osrm": "http://router:5000",
		"ors":  "http://router:8082",
		"val":  "http://router:8002",
	}
	for name, want := range cases {
		c, err := New(name, "router", http.DefaultClient, discard())
		if err != nil {
			t.Fatal(err)
		}
		if c.baseURL != want {
			t.Errorf("%s base url = %q, want %q", name, c.baseURL, want)
		}
	}

	c, err := New("osrm", "router:9999", http.DefaultClient, discard())
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != "http://router:9999" {
		t.Errorf("explicit port overridden: %q", c.baseURL)
	}
}

func TestOSRM(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/route/v1/driving/") {
			t.Errorf("path = %q", r.URL.Path)
		}
		want := coord(start.Lon) + "," + coord(start.Lat) + ";" + coord(end.Lon) + "," + coord(end.Lat)
		if !strings.Contains(r.URL.Path, want) {
			t.Errorf("path %q missing coordinates %q", r.URL.Path, want)
		}
		if r.URL.Query().Get("overview") != "false" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"code":"Ok","routes":[{"duration":1234.5,"distance":9000}]}`)
	}))
	defer ts.Close()

	got, err := newClient(t, "osrm", ts).PointToPoint(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1234.5 {
		t.Fatalf("duration = %g, want 1234.5", got)
	}
}

func TestOSRM_NoRoutes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"code":"Ok","routes":[]}`)
	}))
	defer ts.Close()

	if _, err := newClient(t, "osrm", ts).PointToPoint(context.Background(), start, end); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestOSRM_BadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"routes": [`)
	}))
	defer ts.Close()

	if _, err := newClient(t, "osrm", ts).PointToPoint(context.Background(), start, end); !errors.Is(err, ErrProtocolParse) {
		t.Fatalf("err = %v, want ErrProtocolParse", err)
	}
}

func TestORS(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ors/v2/directions/driving-car" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Coordinates [][2]float64 `json:"coordinates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(req.Coordinates) != 2 || req.Coordinates[0] != [2]float64{start.Lon, start.Lat} {
			t.Errorf("coordinates = %v", req.Coordinates)
		}
		io.WriteString(w, `{"routes":[{"summary":{"duration":640.2,"distance":5000}}]}`)
	}))
	defer ts.Close()

	got, err := newClient(t, "ors", ts).PointToPoint(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if got != 640.2 {
		t.Fatalf("duration = %g, want 640.2", got)
	}
}

func TestValhalla(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/route" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Locations []struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"locations"`
			Costing string `json:"costing"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Costing != "auto" || len(req.Locations) != 2 || req.Locations[0].Lat != start.Lat {
			t.Errorf("request = %+v", req)
		}
		io.WriteString(w, `{"trip":{"summary":{"time":980.0,"length":12.3}}}`)
	}))
	defer ts.Close()

	got, err := newClient(t, "val", ts).PointToPoint(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if got != 980.0 {
		t.Fatalf("time = %g, want 980", got)
	}
}

// valhalla reports "no route" as error_code 442 with a non-2xx status
func TestValhalla_NoRoute(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error_code":442,"error":"No path could be found for input","status_code":400}`)
	}))
	defer ts.Close()

	if _, err := newClient(t, "val", ts).PointToPoint(context.Background(), start, end); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestServerDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	addr := strings.TrimPrefix(ts.URL, "http://")
	ts.Close()

	c, err := New("osrm", addr, http.DefaultClient, discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.PointToPoint(context.Background(), start, end); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
