// Command simulate drives a full ride lifecycle over the dispatch core's
// WS protocol: a driver connects and goes available, a passenger posts
// nova_corrida, the driver accepts its offer. The WS-protocol successor to
// the teacher's REST request+accept tool.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"ridedispatch/internal/wsclient"
)

func main() {
	addr := flag.String("addr", "ws://localhost:10000/ws", "dispatch core /ws address")
	rideID := flag.String("ride", fmt.Sprintf("sim_%d", time.Now().Unix()), "rideId to use")
	passengerID := flag.String("passenger-id", "sim_passenger_1", "passenger id")
	driverID := flag.String("driver-id", "sim_driver_1", "driver id")
	lat := flag.Float64("lat", -23.550, "pickup latitude")
	lng := flag.Float64("lng", -46.634, "pickup longitude")
	flag.Parse()

	driver, err := wsclient.Dial(*addr)
	if err != nil {
		log.Fatalf("driver dial: %v", err)
	}
	defer driver.Close()

	if err := driver.Send("identificar", map[string]any{"tipo": "motorista", "driverId": *driverID}); err != nil {
		log.Fatalf("driver identificar: %v", err)
	}
	if err := driver.Send("driver_status", map[string]any{"available": true}); err != nil {
		log.Fatalf("driver_status: %v", err)
	}
	if err := driver.Send("driver_localizacao", map[string]any{"lat": *lat, "lng": *lng}); err != nil {
		log.Fatalf("driver_localizacao: %v", err)
	}

	passenger, err := wsclient.Dial(*addr)
	if err != nil {
		log.Fatalf("passenger dial: %v", err)
	}
	defer passenger.Close()

	if err := passenger.Send("identificar", map[string]any{"tipo": "passageiro"}); err != nil {
		log.Fatalf("passenger identificar: %v", err)
	}

	if err := passenger.Send("nova_corrida", map[string]any{
		"rideId":              *rideID,
		"passengerId":         *passengerID,
		"passengerName":       "Simulated Passenger",
		"pickupAddress":       "Pickup",
		"pickupLocation":      map[string]float64{"latitude": *lat, "longitude": *lng},
		"destinationAddress":  "Destination",
		"destinationLocation": map[string]float64{"latitude": *lat + 0.05, "longitude": *lng + 0.05},
		"fare":                25,
	}); err != nil {
		log.Fatalf("nova_corrida: %v", err)
	}
	log.Printf("ride requested: %s", *rideID)

	var offer struct {
		OfferID string `json:"offerId"`
		RideID  string `json:"rideId"`
	}
	if err := wsclient.WaitFor(driver, "corrida_disponivel", &offer, 15*time.Second); err != nil {
		log.Fatalf("waiting for offer: %v", err)
	}
	log.Printf("offer received: %s", offer.OfferID)

	if err := driver.Send("corrida_aceita", map[string]any{
		"rideId":       offer.RideID,
		"offerId":      offer.OfferID,
		"driverId":     *driverID,
		"driverName":   "Simulated Driver",
		"driverPhone":  "555-0100",
		"vehicleModel": "Sedan",
		"vehiclePlate": "SIM-001",
	}); err != nil {
		log.Fatalf("corrida_aceita: %v", err)
	}

	if err := wsclient.WaitFor(driver, "offer_won", nil, 5*time.Second); err != nil {
		log.Fatalf("waiting for offer_won: %v", err)
	}
	log.Printf("ride accepted by %s", *driverID)
}
