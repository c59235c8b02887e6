// Command client is a terminal player for the blackjack room server.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func main() {
	if err := newClientCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newClientCmd() *cobra.Command {
	var (
		host     string
		game     string
		name     string
		code     string
		playerID string
	)
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Play blackjack from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			u := url.URL{Scheme: "ws", Host: host, Path: "/ws/" + game}
			return run(u.String(), name, code, playerID)
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost:3000", "server address")
	cmd.Flags().StringVar(&game, "game", "blackjack", "game path")
	cmd.Flags().StringVar(&name, "name", "Player", "display name")
	cmd.Flags().StringVar(&code, "room", "", "room code to join; empty creates a room")
	cmd.Flags().StringVar(&playerID, "player-id", "", "player id to reclaim a seat")
	return cmd
}

// request turns one input line into a protocol message.
func request(line string) (map[string]string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}
	switch fields[0] {
	case "start":
		return map[string]string{"type": "startRound"}, true
	case "reset":
		return map[string]string{"type": "reset"}, true
	case "hit", "stand":
		return map[string]string{"type": "action", "action": fields[0]}, true
	case "join":
		if len(fields) < 2 {
			return nil, false
		}
		return map[string]string{"type": "joinRoom", "roomCode": fields[1]}, true
	}
	return nil, false
}

func run(addr, name, code, playerID string) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	fmt.Printf("Connecting to %s\n", addr)
	c, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	done := make(chan struct{})
	seats := newSeats()

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				fmt.Println("Read error:", err)
				return
			}
			seats.observe(message)
			fmt.Println(render(message))
		}
	}()

	hello := map[string]string{"type": "createRoom", "name": name, "playerId": playerID}
	if code != "" {
		hello = map[string]string{"type": "joinRoom", "roomCode": code, "name": name, "playerId": playerID}
	}
	if err := c.WriteJSON(hello); err != nil {
		return err
	}

	fmt.Println("Commands: start, hit, stand, reset, join <code>")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return nil
		case <-interrupt:
			return c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			msg, ok := request(line)
			if !ok {
				fmt.Println("unknown command")
				continue
			}
			if msg["type"] == "joinRoom" {
				msg["name"] = name
				msg["playerId"] = seats.playerID(msg["roomCode"], playerID)
			}
			if err := c.WriteJSON(msg); err != nil {
				return err
			}
		}
	}
}

// seats remembers the player id the server assigned in each room, so a later
// join to the same room reclaims that seat.
type seats struct {
	mu      sync.Mutex
	pending string
	byRoom  map[string]string
}

func newSeats() *seats {
	return &seats{byRoom: make(map[string]string)}
}

// observe records ids from the you/room pair sent on every successful join.
func (s *seats) observe(raw []byte) {
	var msg struct {
		Type     string `json:"type"`
		PlayerID string `json:"playerId"`
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg.Type {
	case "you":
		s.pending = msg.PlayerID
	case "room":
		if s.pending != "" {
			s.byRoom[msg.RoomCode] = s.pending
			s.pending = ""
		}
	}
}

func (s *seats) playerID(roomCode, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byRoom[strings.ToUpper(strings.TrimSpace(roomCode))]; ok {
		return id
	}
	return fallback
}

type stateView struct {
	RoomCode string `json:"roomCode"`
	Phase    string `json:"phase"`
	Players  []struct {
		Name   string `json:"name"`
		Hand   []card `json:"hand"`
		Score  int    `json:"score"`
		Status string `json:"status"`
		ID     string `json:"id"`
	} `json:"players"`
	DealerHand  []card            `json:"dealerHand"`
	DealerScore int               `json:"dealerScore"`
	CurrentTurn string            `json:"currentTurn"`
	Results     map[string]string `json:"results"`
}

type card struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

func (c card) String() string {
	if c.Suit == "back" || c.Suit == "" {
		return "??"
	}
	return c.Value + "/" + c.Suit[:1]
}

// render formats one server frame for the terminal.
func render(raw []byte) string {
	var msg struct {
		Type     string          `json:"type"`
		PlayerID string          `json:"playerId"`
		RoomCode string          `json:"roomCode"`
		Message  string          `json:"message"`
		State    json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return string(raw)
	}
	switch msg.Type {
	case "you":
		return "you are " + msg.PlayerID
	case "room":
		return "room " + msg.RoomCode
	case "toast":
		return "* " + msg.Message
	case "error":
		return "! " + msg.Message
	case "state":
		var st stateView
		if err := json.Unmarshal(msg.State, &st); err != nil {
			return string(raw)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "[%s %s] dealer %v (%d)\n", st.RoomCode, st.Phase, st.DealerHand, st.DealerScore)
		for _, p := range st.Players {
			marker := " "
			if p.ID == st.CurrentTurn {
				marker = ">"
			}
			fmt.Fprintf(&b, "%s %-12s %v (%d) %s %s\n", marker, p.Name, p.Hand, p.Score, p.Status, st.Results[p.ID])
		}
		return strings.TrimRight(b.String(), "\n")
	}
	return string(raw)
}
