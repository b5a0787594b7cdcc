// Package config loads the flat key=value configuration file. Lines starting
// with `#`, `;` or `//` are comments.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	HashIndexFile       string  `ini:"hashindex_file" validate:"required"`
	ZonesCSVFile        string  `ini:"zones_csv_file" validate:"required"`
	SpatialETAPath      string  `ini:"spatial_eta_path" validate:"required"`
	TimeZoningType      int     `ini:"time_zoning_type" validate:"min=0,max=3"`
	RoutingEngineServer string  `ini:"routingengine_server" validate:"required"`
	Engine              string  `ini:"engine" validate:"oneof=osrm ors val"`
	AggregateType       string  `ini:"aggregate_type" validate:"oneof=min_max min_med_max percentiles"`
	RecordSize          int     `ini:"record_size" validate:"min=8"`
	ETAOffset           int     `ini:"eta_offset" validate:"min=0"`
	CellsPerDegree      int     `ini:"cells_per_degree" validate:"min=1"`
	TableCacheSize      int     `ini:"table_cache_size" validate:"min=0"`
	ListenAddr          string  `ini:"listen_addr"`
	LogLevel            string  `ini:"log_level"`
	LogConsole          bool    `ini:"log_console"`
	RateLimitRPS        float64 `ini:"rate_limit_rps" validate:"min=0"`
}

var validate = validator.New()

func Load(path string) (Config, error) {
	cfg := Config{
		RecordSize:     8,
		ETAOffset:      0,
		CellsPerDegree: 10,
		ListenAddr:     ":8090",
		LogLevel:       "info",
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	f, err := ini.Load(stripSlashComments(raw))
	if err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	if err := f.Section("").MapTo(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// INI knows `#` and `;` comments but not `//`; those lines are dropped before
// parsing.
func stripSlashComments(raw []byte) []byte {
	lines := strings.Split(string(raw), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n"))
}
