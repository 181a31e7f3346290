// client/main.go is a small interactive client for manual testing.
package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
)

// Envelope mirrors the server's wire frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func send(c *websocket.Conn, event string, payload any) error {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Data = data
	}
	return c.WriteJSON(env)
}

func main() {
	userID := "demo-user"
	username := "Demo"
	if len(os.Args) > 2 {
		userID = os.Args[1]
		username = os.Args[2]
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme:   "ws",
		Host:     "localhost:8080",
		Path:     "/ws",
		RawQuery: "user_id=" + url.QueryEscape(userID) + "&username=" + url.QueryEscape(username),
	}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var env Envelope
			if err := c.ReadJSON(&env); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s: %s", env.Event, string(env.Data))
		}
	}()

	log.Println("Commands:")
	log.Println("  create <name>        open a room")
	log.Println("  join <room_id>       join a room")
	log.Println("  list                 list available rooms")
	log.Println("  start <room_id>      start the game")
	log.Println("  follow <game_id>     subscribe to game events")
	log.Println("  roll <game_id>       roll the dice")
	log.Println("  answer <game_id> <A|B|C>")
	log.Println("  surrender <game_id>")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "create":
			name := "sala"
			if len(parts) > 1 {
				name = parts[1]
			}
			err = send(c, "CreateRoom", map[string]any{"name": name, "max_players": 4})
		case "join":
			if len(parts) < 2 {
				continue
			}
			err = send(c, "JoinRoom", map[string]string{"room_id": parts[1]})
		case "list":
			err = send(c, "ListRooms", nil)
		case "start":
			if len(parts) < 2 {
				continue
			}
			err = send(c, "CreateGame", map[string]string{"room_id": parts[1]})
		case "follow":
			if len(parts) < 2 {
				continue
			}
			err = send(c, "JoinGameGroup", map[string]string{"game_id": parts[1]})
		case "roll":
			if len(parts) < 2 {
				continue
			}
			err = send(c, "RollDice", map[string]string{"game_id": parts[1]})
		case "answer":
			if len(parts) < 3 {
				continue
			}
			err = send(c, "AnswerQuizQuestion", map[string]string{"game_id": parts[1], "answer": parts[2]})
		case "surrender":
			if len(parts) < 2 {
				continue
			}
			err = send(c, "Surrender", map[string]string{"game_id": parts[1]})
		default:
			log.Printf("Unknown command %q", parts[0])
			continue
		}
		if err != nil {
			log.Println("Write error:", err)
			return
		}
	}
}
