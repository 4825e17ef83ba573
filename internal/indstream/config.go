package indstream

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"ta-streamv1/internal/indicator"
)

// Config holds all env-parsed configuration for the indicator stream service.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FeedURL     string
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string

	BarChanBuf int

	Specs []IndicatorSpec
}

// IndicatorSpec is one parsed entry of the INDICATORS env var.
type IndicatorSpec struct {
	Type   string // "SMA", "EMA", "RSI", "BB"
	Length int
	Source indicator.Source
	StdDev float64 // BB only; 0 means default
	Strict bool    // EMA only: enforce full convergence before output
}

// Name returns the publish name, e.g. "SMA_20", "EMA_21_hl2", "BB_20".
// The source suffix is omitted for the default Close source.
func (s IndicatorSpec) Name() string {
	name := s.Type + "_" + strconv.Itoa(s.Length)
	if s.Source != indicator.SourceClose {
		name += "_" + strings.ToLower(s.Source.String())
	}
	return name
}

// LoadConfig reads all environment variables and returns a Config.
func LoadConfig() Config {
	barBuf, _ := strconv.Atoi(getEnv("BAR_CHAN_BUF", "5000"))
	if barBuf <= 0 {
		barBuf = 5000
	}
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		FeedURL:       getEnv("FEED_URL", "ws://localhost:9001/ws"),
		HTTPAddr:      getEnv("INDSTREAM_HTTP_ADDR", ":9095"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9105"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		BarChanBuf:    barBuf,
		Specs:         ParseIndicatorSpecs(getEnv("INDICATORS", "")),
	}
}

// ParseIndicatorSpecs parses "TYPE:LENGTH[:SOURCE[:EXTRA]],..." into specs.
// EXTRA is the band multiplier for BB and "strict" for EMA.
// Example: "SMA:20,EMA:21:hl2,EMA:50:close:strict,RSI:14,BB:20:close:2.5"
// Returns defaults if input is empty; invalid entries are skipped.
func ParseIndicatorSpecs(s string) []IndicatorSpec {
	if s == "" {
		return []IndicatorSpec{
			{Type: "SMA", Length: 9},
			{Type: "SMA", Length: 20},
			{Type: "EMA", Length: 9},
			{Type: "EMA", Length: 21},
			{Type: "RSI", Length: 14},
			{Type: "BB", Length: 20, StdDev: indicator.DefaultStdDev},
		}
	}

	var specs []IndicatorSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spec, err := parseSpec(part)
		if err != nil {
			slog.Warn("skipping invalid indicator spec", "spec", part, "err", err)
			continue
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		slog.Warn("no valid indicators parsed, using defaults")
		return ParseIndicatorSpecs("")
	}
	slog.Info("loaded indicator specs", "count", len(specs))
	return specs
}

func parseSpec(part string) (IndicatorSpec, error) {
	tokens := strings.Split(part, ":")
	if len(tokens) < 2 || len(tokens) > 4 {
		return IndicatorSpec{}, fmt.Errorf("want TYPE:LENGTH[:SOURCE[:EXTRA]], got %q", part)
	}

	typ := strings.ToUpper(strings.TrimSpace(tokens[0]))
	switch typ {
	case "SMA", "EMA", "RSI", "BB":
	default:
		return IndicatorSpec{}, fmt.Errorf("unknown indicator type %q", typ)
	}

	length, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
	if err != nil || length <= 0 {
		return IndicatorSpec{}, fmt.Errorf("invalid length %q", tokens[1])
	}

	spec := IndicatorSpec{Type: typ, Length: length}
	if typ == "BB" {
		spec.StdDev = indicator.DefaultStdDev
	}

	if len(tokens) >= 3 {
		src, err := indicator.ParseSource(tokens[2])
		if err != nil {
			return IndicatorSpec{}, err
		}
		spec.Source = src
	}

	if len(tokens) == 4 {
		extra := strings.ToLower(strings.TrimSpace(tokens[3]))
		switch typ {
		case "BB":
			k, err := strconv.ParseFloat(extra, 64)
			if err != nil || k <= 0 {
				return IndicatorSpec{}, fmt.Errorf("invalid band multiplier %q", tokens[3])
			}
			spec.StdDev = k
		case "EMA":
			if extra != "strict" {
				return IndicatorSpec{}, fmt.Errorf("unknown EMA option %q", tokens[3])
			}
			spec.Strict = true
		default:
			return IndicatorSpec{}, fmt.Errorf("%s takes no extra option", typ)
		}
	}

	return spec, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
