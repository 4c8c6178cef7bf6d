package estimate

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultGeocoderInterval = 1000 * time.Millisecond
	defaultRouterInterval   = 200 * time.Millisecond
	defaultMaxRetries       = 2
	defaultBackoffBase      = 500 * time.Millisecond
	defaultProviderTimeout  = 7 * time.Second
	defaultGeocodeResults   = 5
	defaultPriceStep        = 50
	defaultCountryHint      = "kz"
)

// EstimateConfig holds runtime configuration for the estimation module.
type EstimateConfig struct {
	DGISAPIKey       string
	DGISRegionID     string
	CountryHint      string
	GeocoderInterval time.Duration
	RouterInterval   time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	ProviderTimeout  time.Duration
	GeocodeResults   int
	PriceStep        int
	ApproxFallback   bool
}

// LoadEstimateConfig reads configuration from environment variables and
// applies defaults.
func LoadEstimateConfig() (EstimateConfig, error) {
	cfg := EstimateConfig{
		CountryHint:      defaultCountryHint,
		GeocoderInterval: defaultGeocoderInterval,
		RouterInterval:   defaultRouterInterval,
		MaxRetries:       defaultMaxRetries,
		BackoffBase:      defaultBackoffBase,
		ProviderTimeout:  defaultProviderTimeout,
		GeocodeResults:   defaultGeocodeResults,
		PriceStep:        defaultPriceStep,
	}

	cfg.DGISAPIKey = os.Getenv("DGIS_API_KEY")
	if cfg.DGISAPIKey == "" {
		return EstimateConfig{}, fmt.Errorf("DGIS_API_KEY is required")
	}
	cfg.DGISRegionID = os.Getenv("DGIS_REGION_ID")
	if v := os.Getenv("GEOCODE_COUNTRY_HINT"); v != "" {
		cfg.CountryHint = v
	}

	if v, err := readIntEnv("GEOCODER_MIN_INTERVAL_MS"); err != nil {
		return EstimateConfig{}, fmt.Errorf("parse GEOCODER_MIN_INTERVAL_MS: %w", err)
	} else if v != nil {
		cfg.GeocoderInterval = time.Duration(*v) * time.Millisecond
	}

	if v, err := readIntEnv("ROUTER_MIN_INTERVAL_MS"); err != nil {
		return EstimateConfig{}, fmt.Errorf("parse ROUTER_MIN_INTERVAL_MS: %w", err)
	} else if v != nil {
		cfg.RouterInterval = time.Duration(*v) * time.Millisecond
	}

	if v, err := readIntEnv("PROVIDER_MAX_RETRIES"); err != nil {
		return EstimateConfig{}, fmt.Errorf("parse PROVIDER_MAX_RETRIES: %w", err)
	} else if v != nil {
		cfg.MaxRetries = *v
	}

	if v, err := readIntEnv("PROVIDER_BACKOFF_MS"); err != nil {
		return EstimateConfig{}, fmt.Errorf("parse PROVIDER_BACKOFF_MS: %w", err)
	} else if v != nil {
		cfg.BackoffBase = time.Duration(*v) * time.Millisecond
	}

	if v, err := readIntEnv("PROVIDER_TIMEOUT_SECONDS"); err != nil {
		return EstimateConfig{}, fmt.Errorf("parse PROVIDER_TIMEOUT_SECONDS: %w", err)
	} else if v != nil {
		cfg.ProviderTimeout = time.Duration(*v) * time.Second
	}

	if v, err := readIntEnv("GEOCODE_MAX_RESULTS"); err != nil {
		return EstimateConfig{}, fmt.Errorf("parse GEOCODE_MAX_RESULTS: %w", err)
	} else if v != nil {
		cfg.GeocodeResults = *v
	}

	if v, err := readIntEnv("PRICE_STEP"); err != nil {
		return EstimateConfig{}, fmt.Errorf("parse PRICE_STEP: %w", err)
	} else if v != nil {
		cfg.PriceStep = *v
	}

	if v := os.Getenv("ROUTE_APPROX_FALLBACK"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return EstimateConfig{}, fmt.Errorf("parse ROUTE_APPROX_FALLBACK: %w", err)
		}
		cfg.ApproxFallback = enabled
	}

	if cfg.GeocoderInterval <= 0 || cfg.RouterInterval <= 0 {
		return EstimateConfig{}, fmt.Errorf("provider intervals must be positive")
	}
	if cfg.MaxRetries < 0 {
		return EstimateConfig{}, fmt.Errorf("PROVIDER_MAX_RETRIES must not be negative")
	}
	if cfg.GeocodeResults <= 0 {
		return EstimateConfig{}, fmt.Errorf("GEOCODE_MAX_RESULTS must be positive")
	}

	return cfg, nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
