package stream

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/constants"
)

// FleetEndpoint returns the aggregate fleet stream address for base
func FleetEndpoint(base string) (string, error) {
	return endpoint(base, constants.PathFleetStream, constants.PathFleetStream)
}

// VehicleEndpoint returns the per-vehicle publishing stream address for base
func VehicleEndpoint(base, vehicleID string) (string, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return "", fmt.Errorf("vehicle id is required")
	}
	return endpoint(base,
		fmt.Sprintf(constants.PathVehicleStream, vehicleID),
		fmt.Sprintf(constants.PathVehicleStream, url.PathEscape(vehicleID)))
}

// endpoint swaps the transport scheme of base, secure when base is secure,
// and appends path. rawPath is the escaped form of path.
func endpoint(base, path, rawPath string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid stream base address: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported stream base scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("stream base address %q has no host", base)
	}

	escapedPrefix := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = escapedPrefix + rawPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
