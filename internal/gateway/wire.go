package gateway

import "ridedispatch/internal/dispatch"

// Inbound payloads (spec §6.2). Field names are the wire contract — do not
// rename without a protocol version bump.

type identificarMsg struct {
	Tipo     string `json:"tipo"`
	DriverID string `json:"driverId,omitempty"`
}

type driverStatusMsg struct {
	Available bool `json:"available"`
}

type driverLocalizacaoMsg struct {
	RideID  string   `json:"rideId,omitempty"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Heading *float64 `json:"heading,omitempty"`
	Speed   *float64 `json:"speed,omitempty"`
}

type novaCorridaMsg struct {
	RideID              string            `json:"rideId"`
	PassengerID         string            `json:"passengerId"`
	PassengerName       string            `json:"passengerName"`
	PickupAddress       string            `json:"pickupAddress"`
	PickupLocation      dispatch.Coordinate `json:"pickupLocation"`
	DestinationAddress  string            `json:"destinationAddress"`
	DestinationLocation dispatch.Coordinate `json:"destinationLocation"`
	Fare                float64           `json:"fare"`
	RoutePolyline       string            `json:"routePolyline,omitempty"`
}

type corridaAceitaMsg struct {
	RideID           string `json:"rideId"`
	OfferID          string `json:"offerId"`
	DriverID         string `json:"driverId"`
	DriverName       string `json:"driverName"`
	DriverPhone      string `json:"driverPhone"`
	VehicleModel     string `json:"vehicleModel"`
	VehiclePlate     string `json:"vehiclePlate"`
	ApproachPolyline string `json:"approachPolyline,omitempty"`
}

type enviarMensagemMsg struct {
	RideID  string `json:"rideId"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type corridaStatusMsg struct {
	RideID string `json:"rideId"`
	By     string `json:"by,omitempty"`
	Status string `json:"status"`
}
