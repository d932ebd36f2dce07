// Command heartbeat drives a single simulated driver connection, sending
// periodic driver_localizacao updates — the WS-protocol successor to the
// teacher's REST location-posting tool.
package main

import (
	"flag"
	"log"
	"time"

	"ridedispatch/internal/wsclient"
)

func main() {
	addr := flag.String("addr", "ws://localhost:10000/ws", "dispatch core /ws address")
	driverID := flag.String("driver", "sim_driver_1", "driver id to identify as")
	lat := flag.Float64("lat", -23.550, "starting latitude")
	lng := flag.Float64("lng", -46.634, "starting longitude")
	stepLat := flag.Float64("delta-lat", 0.0001, "latitude increment per heartbeat")
	stepLng := flag.Float64("delta-lng", 0.0001, "longitude increment per heartbeat")
	interval := flag.Duration("interval", 3*time.Second, "heartbeat interval")
	count := flag.Int("count", 20, "number of heartbeats to send")
	flag.Parse()

	c, err := wsclient.Dial(*addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.Send("identificar", map[string]any{"tipo": "motorista", "driverId": *driverID}); err != nil {
		log.Fatalf("identificar: %v", err)
	}
	if err := c.Send("driver_status", map[string]any{"available": true}); err != nil {
		log.Fatalf("driver_status: %v", err)
	}

	for i := 0; i < *count; i++ {
		payload := map[string]any{
			"lat": *lat + float64(i)**stepLat,
			"lng": *lng + float64(i)**stepLng,
		}
		if err := c.Send("driver_localizacao", payload); err != nil {
			log.Printf("heartbeat %d failed: %v", i+1, err)
		} else {
			log.Printf("heartbeat %d sent", i+1)
		}
		time.Sleep(*interval)
	}
}
