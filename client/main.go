package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// send wraps an event and payload in the JSON envelope and ships it.
func send(c *websocket.Conn, event string, payload interface{}) error {
	env := map[string]interface{}{"event": event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env["data"] = json.RawMessage(data)
	}
	return c.WriteJSON(env)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
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
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", string(message))
		}
	}()

	name := "demo"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	if err := send(c, "hello", map[string]string{"username": name}); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	log.Println("Commands: create <map> | join <roomId> | role <cop|criminal> | ready | start | rooms | chat <msg> | leave")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				mapKey := "easy"
				if len(fields) > 1 {
					mapKey = fields[1]
				}
				err = send(c, "create-room", map[string]interface{}{
					"name": name + "'s room", "map": mapKey, "allowChat": true,
				})
			case "join":
				if len(fields) < 2 {
					continue
				}
				err = send(c, "join-room", map[string]string{"roomId": fields[1]})
			case "role":
				if len(fields) < 2 {
					continue
				}
				err = send(c, "select-role", map[string]string{"role": fields[1]})
			case "ready":
				err = send(c, "toggle-ready", nil)
			case "start":
				err = send(c, "start-game", nil)
			case "rooms":
				err = send(c, "list-rooms", nil)
			case "chat":
				err = send(c, "room-chat", map[string]string{"message": strings.Join(fields[1:], " ")})
			case "leave":
				err = send(c, "leave-room", nil)
			default:
				log.Printf("Unknown command %q", fields[0])
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}
