// A small interactive client for exercising the server by hand: it
// authenticates, joins a room and auto-plays its turns.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/laddergame/network"
)

var (
	addr   = flag.String("addr", "localhost:8080", "server address")
	token  = flag.String("token", "", "account token")
	roomID = flag.String("room", "lobby", "room to join")
)

func main() {
	flag.Parse()
	if *token == "" {
		log.Fatal("-token is required")
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send(conn, network.MsgTypeAuth, map[string]string{"token": *token})

	var playerID string
	started := false

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		packet, err := network.DecodePacket(raw)
		if err != nil {
			log.Printf("bad packet: %v", err)
			continue
		}

		switch packet.MsgID {
		case network.MsgTypeAuthOK:
			var ok struct {
				PlayerID    string `json:"player_id"`
				DisplayName string `json:"display_name"`
			}
			json.Unmarshal(packet.Data, &ok)
			playerID = ok.PlayerID
			fmt.Printf("authenticated as %s (%s)\n", ok.DisplayName, playerID)
			send(conn, network.MsgTypeRoomJoin, map[string]string{"room_id": *roomID})

		case network.MsgTypeRoomUpdate:
			snap := decodeSnapshot(packet.Data)
			fmt.Printf("room update: %d players, status %s\n", len(snap.Players), snap.Status)
			// The first joined player starts the game once an opponent is in.
			if !started && snap.Status == "waiting" && len(snap.Players) >= 2 &&
				snap.Players[0].ID == playerID {
				send(conn, network.MsgTypeGameStart, map[string]string{"room_id": *roomID})
			}

		case network.MsgTypeGameStart:
			started = true
			fmt.Println("game started")

		case network.MsgTypeDiceRoll:
			var roll struct {
				PlayerID      string `json:"player_id"`
				Roll          int    `json:"roll"`
				FromCell      int    `json:"from_cell"`
				ToCell        int    `json:"to_cell"`
				AfterLinkCell int    `json:"after_link_cell"`
			}
			json.Unmarshal(packet.Data, &roll)
			fmt.Printf("%s rolled %d: %d -> %d", roll.PlayerID, roll.Roll, roll.FromCell, roll.ToCell)
			if roll.AfterLinkCell != roll.ToCell {
				fmt.Printf(" -> %d (link)", roll.AfterLinkCell)
			}
			fmt.Println()

		case network.MsgTypeGameState:
			snap := decodeSnapshot(packet.Data)
			started = snap.Status == "in_progress"
			if snap.ActivePlayerID == playerID {
				time.Sleep(200 * time.Millisecond)
				send(conn, network.MsgTypeGameAction, map[string]string{"room_id": *roomID})
			}

		case network.MsgTypeGameWinner:
			var winner struct {
				PlayerID string `json:"player_id"`
			}
			json.Unmarshal(packet.Data, &winner)
			if winner.PlayerID == playerID {
				fmt.Println("you win!")
			} else {
				fmt.Printf("%s wins\n", winner.PlayerID)
			}
			return

		case network.MsgTypeError:
			var e struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			json.Unmarshal(packet.Data, &e)
			fmt.Printf("error [%s]: %s\n", e.Code, e.Message)
		}
	}
}

type snapshot struct {
	Status         string `json:"status"`
	ActivePlayerID string `json:"active_player_id"`
	Players        []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Position    int    `json:"position"`
		Connected   bool   `json:"connected"`
	} `json:"players"`
}

func decodeSnapshot(data []byte) snapshot {
	var snap snapshot
	json.Unmarshal(data, &snap)
	return snap
}

func send(conn *websocket.Conn, msgID uint16, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	frame, err := network.EncodePacket(msgID, data)
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		log.Fatalf("write: %v", err)
	}
}
