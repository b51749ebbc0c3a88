// Package graph keeps an account graph of the open ledger documents and
// streams it to browser clients over a WebSocket.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"ledgerls/internal/ledger"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ledgerls.graph")

// writeTimeout bounds every WebSocket write.
const writeTimeout = time.Second

// Data holds the nodes and links of the graph.
type Data struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node is an account. ID is the account name.
type Node struct {
	ID       string `json:"id"`
	Postings int    `json:"postings"`
}

// Link joins two accounts posted to by the same transaction.
// Source sorts before Target.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Message is sent over the WebSocket to update clients.
type Message struct {
	Op    string `json:"op"` // "init" or "update"
	Graph *Data  `json:"graph"`
}

// Build derives the account graph of one parse result.
func Build(result *ledger.ParseResult) Data {
	postings := map[string]int{}
	links := map[[2]string]int{}
	for _, d := range result.Directives {
		switch v := d.Value.(type) {
		case ledger.Open:
			if _, ok := postings[v.Account]; !ok {
				postings[v.Account] = 0
			}
		case ledger.Transaction:
			accounts := make([]string, 0, len(v.Postings))
			for _, p := range v.Postings {
				postings[p.Account]++
				accounts = append(accounts, p.Account)
			}
			sort.Strings(accounts)
			for i := range accounts {
				for j := i + 1; j < len(accounts); j++ {
					if accounts[i] != accounts[j] {
						links[[2]string{accounts[i], accounts[j]}]++
					}
				}
			}
		}
	}
	return fromMaps(postings, links)
}

func fromMaps(postings map[string]int, links map[[2]string]int) Data {
	data := Data{Nodes: make([]Node, 0, len(postings)), Links: make([]Link, 0, len(links))}
	for id, n := range postings {
		data.Nodes = append(data.Nodes, Node{ID: id, Postings: n})
	}
	for k, w := range links {
		data.Links = append(data.Links, Link{Source: k[0], Target: k[1], Weight: w})
	}
	sort.Slice(data.Nodes, func(i, j int) bool { return data.Nodes[i].ID < data.Nodes[j].ID })
	sort.Slice(data.Links, func(i, j int) bool {
		if data.Links[i].Source != data.Links[j].Source {
			return data.Links[i].Source < data.Links[j].Source
		}
		return data.Links[i].Target < data.Links[j].Target
	})
	return data
}

// Hub merges the per-document graphs and broadcasts every change.
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	docs map[string]Data

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	serveMu sync.Mutex
	server  *http.Server
	url     string
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: loopbackOrigin},
		docs:     map[string]Data{},
		clients:  map[*websocket.Conn]struct{}{},
	}
}

// Update replaces the contribution of uri and broadcasts the merged graph.
func (h *Hub) Update(uri string, data Data) {
	h.mu.Lock()
	h.docs[uri] = data
	h.mu.Unlock()
	h.broadcast("update")
}

// Remove drops the contribution of uri.
func (h *Hub) Remove(uri string) {
	h.mu.Lock()
	_, ok := h.docs[uri]
	delete(h.docs, uri)
	h.mu.Unlock()
	if ok {
		h.broadcast("update")
	}
}

// Graph returns the merged graph of all documents.
func (h *Hub) Graph() Data {
	h.mu.Lock()
	defer h.mu.Unlock()
	postings := map[string]int{}
	links := map[[2]string]int{}
	for _, d := range h.docs {
		for _, n := range d.Nodes {
			postings[n.ID] += n.Postings
		}
		for _, l := range d.Links {
			links[[2]string{l.Source, l.Target}] += l.Weight
		}
	}
	return fromMaps(postings, links)
}

// Handler serves the current graph as JSON on "/" and live updates on "/ws".
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h.Graph()); err != nil {
			log.Errorf("failed to write graph: %v", err)
		}
	})
	mux.HandleFunc("/ws", h.handleWS)
	return mux
}

// Serve starts the HTTP and WebSocket server on addr (e.g. "127.0.0.1:0")
// and returns the URL of the graph. Later calls return the same URL.
func (h *Hub) Serve(addr string) (string, error) {
	h.serveMu.Lock()
	defer h.serveMu.Unlock()
	if h.server != nil {
		return h.url, nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.server = &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	h.url = "http://" + l.Addr().String() + "/"

	server := h.server
	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("graph server: %v", err)
		}
	}()
	log.Infof("serving account graph at %s", h.url)
	return h.url, nil
}

// Close stops the server and disconnects every client.
func (h *Hub) Close() error {
	h.serveMu.Lock()
	server := h.server
	h.server, h.url = nil, ""
	h.serveMu.Unlock()

	h.clientsMu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()

	if server == nil {
		return nil
	}
	return server.Close()
}

func (h *Hub) broadcast(op string) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	state := h.Graph()
	data, err := json.Marshal(Message{Op: op, Graph: &state})
	if err != nil {
		log.Errorf("failed to marshal graph: %v", err)
		return
	}
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warningf("broadcast error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// loopbackOrigin admits clients without an Origin header and browser pages
// served from the local machine only.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("websocket upgrade error: %v", err)
		return
	}

	// the init message is written under clientsMu so no update can overtake it
	h.clientsMu.Lock()
	state := h.Graph()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteJSON(Message{Op: "init", Graph: &state})
	if err == nil {
		h.clients[conn] = struct{}{}
	}
	h.clientsMu.Unlock()
	if err != nil {
		log.Warningf("failed to send initial graph: %v", err)
		conn.Close()
		return
	}

	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, conn)
		h.clientsMu.Unlock()
		conn.Close()
	}()

	// keep the connection open until the client goes away
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
}
