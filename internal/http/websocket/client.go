package websocket

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type socketClient struct {
	id     uuid.UUID
	socket *websocket.Conn
	mutex  sync.Mutex
}

func (client *socketClient) SendMessage(message *SocketMessage) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	return client.socket.WriteJSON(message)
}

// Read runs the read loop for the connection, emitting every message received
// on the channel provided until the connection fails or 'done' is closed. The
// caller is responsible for deregistering the client once this returns.
func (client *socketClient) Read(receiveCh chan<- *SocketMessage, done <-chan struct{}) error {
	for {
		var recv SocketMessage
		if err := client.socket.ReadJSON(&recv); err != nil {
			return err
		}

		recv.Origin = &client.id
		select {
		case receiveCh <- &recv:
		case <-done:
			return nil
		}
	}
}

func (client *socketClient) Close() {
	client.socket.Close()
}
