package ws

import (
	"fun-friday-chat/backend/internal/identity"
	"fun-friday-chat/backend/internal/relay"
	"fun-friday-chat/backend/internal/rooms"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "relay_connections",
	Help: "Live WebSocket connections.",
})

// Hub owns the set of live connections and hands their join/submit events
// to the identity resolver, room registry and relay
type Hub struct {
	resolver    *identity.Resolver
	registry    *rooms.Registry
	relay       *relay.Relay
	defaultRoom string
	log         *logger.Logger

	register   chan *Client
	unregister chan *Client
	clients    map[*Client]bool
}

// NewHub creates a hub wired to the relay core
func NewHub(resolver *identity.Resolver, registry *rooms.Registry, rl *relay.Relay, defaultRoom string, log *logger.Logger) *Hub {
	return &Hub{
		resolver:    resolver,
		registry:    registry,
		relay:       rl,
		defaultRoom: defaultRoom,
		log:         log,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
	}
}

// Run processes connection registration and teardown. Should be started in
// its own goroutine before the first upgrade.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			connectionsGauge.Inc()
			h.log.Info("client registered", "conn_id", client.ID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				connectionsGauge.Dec()

				// Drop room membership first so an in-flight broadcast
				// snapshot taken after this point no longer sees the
				// connection, then close the outbound channel.
				h.registry.Leave(client)
				client.closeSend()

				h.log.Info("client unregistered", "conn_id", client.ID)
			}
		}
	}
}
