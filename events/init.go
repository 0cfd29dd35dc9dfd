package events

import "github.com/r3labs/sse/v2"

var Server *sse.Server

func Init() {
	server := sse.New()
	server.AutoReplay = false
	Server = server
}

// PublishState mirrors a canonical state payload onto the local SSE stream
// so status pages can follow along without holding a sync connection.
func PublishState(payload []byte) {
	if Server == nil {
		return
	}
	Server.Publish("desktop", &sse.Event{Data: payload})
}
