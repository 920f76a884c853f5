package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fernwood/lexweb/core/query"
	"github.com/fernwood/lexweb/core/search"
	"github.com/fernwood/lexweb/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Same-host pages only; the endpoint serves the search box.
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// liveQuery is one search request from the page's search box.
type liveQuery struct {
	Query string `json:"query"`
}

// liveHit is one result row pushed back over the socket.
type liveHit struct {
	ID       string `json:"id"`
	Headword string `json:"headword"`
	Pos      string `json:"pos,omitempty"`
}

// liveResult answers one liveQuery.
type liveResult struct {
	Query string    `json:"query"`
	Hits  []liveHit `json:"hits"`
	Error string    `json:"error,omitempty"`
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsLiveLimit  = 10
	wsMaxMessage = 1024
)

// handleLiveSearch serves incremental search over a WebSocket. Each message
// is an independent query; results stream back on the same connection.
func (s *Server) handleLiveSearch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	logging.DebugContext(r.Context(), "live search connected", "remote_addr", r.RemoteAddr)

	for {
		var req liveQuery
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.DebugContext(r.Context(), "live search closed", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		res := s.liveSearch(r, req.Query)
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(res); err != nil {
			return
		}
	}
}

func (s *Server) liveSearch(r *http.Request, raw string) liveResult {
	res := liveResult{Query: raw}
	q, err := query.Parse(raw)
	if err != nil {
		res.Error = "unrecognized query"
		return res
	}
	hits, err := s.store.Search(r.Context(), q, wsLiveLimit)
	if err != nil {
		logging.ErrorContext(r.Context(), "live search failed", "query", raw, "error", err)
		res.Error = "search failed"
		return res
	}
	for _, hit := range hits {
		lh := liveHit{ID: hit.ID, Headword: search.OfficialHeadword(hit.Record)}
		if pos := hit.Record.Fetch(search.FieldPos); len(pos) > 0 {
			lh.Pos = pos[0]
		}
		res.Hits = append(res.Hits, lh)
	}
	return res
}
