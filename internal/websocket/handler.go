package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs wires one upgraded connection into the hub and gateway. It blocks
// for the lifetime of the connection (fiber's websocket handler owns the
// goroutine).
func ServeWs(hub *Hub, gateway *Gateway, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		Hub:     hub,
		Gateway: gateway,
		Conn:    conn,
		ConnId:  uuid.New(),
		Send:    make(chan []byte, 256),
		ctx:     ctx,
		cancel:  cancel,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
