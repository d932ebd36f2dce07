// Command smoke runs a minimal end-to-end check against a running dispatch
// core: liveness probe, then a full happy-path ride (S1 in the testable
// scenarios) over the WS protocol. Exits non-zero on any failure, the
// WS-protocol successor to the teacher's REST+token smoke tool.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"ridedispatch/internal/wsclient"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	httpBase := envOrDefault("HTTP_BASE", "http://localhost:10000")
	wsAddr := envOrDefault("WS_ADDR", "ws://localhost:10000/ws")

	if err := checkLiveness(httpBase); err != nil {
		fail("liveness check", err)
	}
	fmt.Println("liveness OK")

	if err := happyPath(wsAddr); err != nil {
		fail("happy path", err)
	}
	fmt.Println("happy path OK")
}

func checkLiveness(base string) error {
	resp, err := http.Get(base + "/")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

func happyPath(addr string) error {
	rideID := fmt.Sprintf("smoke_%d", time.Now().UnixNano())

	driver, err := wsclient.Dial(addr)
	if err != nil {
		return fmt.Errorf("driver dial: %w", err)
	}
	defer driver.Close()

	if err := driver.Send("identificar", map[string]any{"tipo": "motorista", "driverId": "smoke_driver"}); err != nil {
		return err
	}
	if err := driver.Send("driver_status", map[string]any{"available": true}); err != nil {
		return err
	}
	if err := driver.Send("driver_localizacao", map[string]any{"lat": -23.550, "lng": -46.634}); err != nil {
		return err
	}

	passenger, err := wsclient.Dial(addr)
	if err != nil {
		return fmt.Errorf("passenger dial: %w", err)
	}
	defer passenger.Close()

	if err := passenger.Send("identificar", map[string]any{"tipo": "passageiro"}); err != nil {
		return err
	}
	if err := passenger.Send("nova_corrida", map[string]any{
		"rideId":              rideID,
		"passengerId":         "smoke_passenger",
		"passengerName":       "Smoke Passenger",
		"pickupAddress":       "Pickup",
		"pickupLocation":      map[string]float64{"latitude": -23.550, "longitude": -46.633},
		"destinationAddress":  "Destination",
		"destinationLocation": map[string]float64{"latitude": -23.500, "longitude": -46.600},
		"fare":                25,
	}); err != nil {
		return err
	}

	var offer struct {
		OfferID string `json:"offerId"`
		RideID  string `json:"rideId"`
	}
	if err := wsclient.WaitFor(driver, "corrida_disponivel", &offer, 15*time.Second); err != nil {
		return fmt.Errorf("offer: %w", err)
	}
	if offer.RideID != rideID {
		return fmt.Errorf("offer for wrong ride: got %s want %s", offer.RideID, rideID)
	}

	if err := driver.Send("corrida_aceita", map[string]any{
		"rideId":       offer.RideID,
		"offerId":      offer.OfferID,
		"driverId":     "smoke_driver",
		"driverName":   "Smoke Driver",
		"driverPhone":  "555-0100",
		"vehicleModel": "Sedan",
		"vehiclePlate": "SMK-001",
	}); err != nil {
		return err
	}

	if err := wsclient.WaitFor(driver, "offer_won", nil, 5*time.Second); err != nil {
		return fmt.Errorf("offer_won: %w", err)
	}

	var accepted map[string]any
	if err := wsclient.WaitFor(passenger, "corrida_aceita", &accepted, 5*time.Second); err != nil {
		return fmt.Errorf("passenger corrida_aceita: %w", err)
	}
	if accepted["status"] != "accepted" {
		return fmt.Errorf("unexpected status in corrida_aceita: %v", accepted["status"])
	}
	return nil
}

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", stage, err)
	os.Exit(1)
}
