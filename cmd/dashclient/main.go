package main

import (
	"encoding/json"
	"flag"
	"log"

	"github.com/gorilla/websocket"
)

type toneEntry struct {
	ToneID   string  `json:"tone_id"`
	ToneName string  `json:"tone_name"`
	Score    float64 `json:"score"`
}

func main() {
	serverAddr := flag.String("server", "ws://localhost:8000/dashboard-socket", "Dashboard socket URL")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*serverAddr, nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s, waiting for tone results", *serverAddr)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read failed: %v", err)
		}

		var tones []toneEntry
		if err := json.Unmarshal(payload, &tones); err != nil {
			log.Printf("unparseable payload: %s", payload)
			continue
		}

		for _, tone := range tones {
			log.Printf("%s: %.2f", tone.ToneName, tone.Score)
		}
	}
}
