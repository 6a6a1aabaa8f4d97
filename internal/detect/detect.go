// Package detect locates the serial port of a Lumen UART bridge by its
// USB identity.
package detect

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB identifiers of the CP2102N bridge on the factory fixture.
const (
	bridgeVID = "10C4"
	bridgePID = "EA60"
)

// Result describes a detected bridge port.
type Result struct {
	Port         string
	SerialNumber string
	Product      string
}

// BridgePorts returns every serial port whose USB identity matches the
// bridge.
func BridgePorts() ([]Result, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate ports: %w", err)
	}

	var results []Result
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if !strings.EqualFold(port.VID, bridgeVID) || !strings.EqualFold(port.PID, bridgePID) {
			continue
		}
		results = append(results, Result{
			Port:         port.Name,
			SerialNumber: port.SerialNumber,
			Product:      port.Product,
		})
	}
	return results, nil
}

// Bridge returns the single detected bridge port. It fails when none is
// present and when several are, so a flash never goes to an ambiguous
// target.
func Bridge() (*Result, error) {
	results, err := BridgePorts()
	if err != nil {
		return nil, err
	}

	switch len(results) {
	case 0:
		return nil, fmt.Errorf("no Lumen bridge found; specify a port with --port")
	case 1:
		return &results[0], nil
	default:
		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.Port
		}
		return nil, fmt.Errorf("multiple Lumen bridges found (%s); specify a port with --port",
			strings.Join(names, ", "))
	}
}
