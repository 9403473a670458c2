package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	RiderID  int64  `json:"rider_id"`
	ThreadID string `json:"thread_id"` // empty for new conversations
	Content  string `json:"content"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type      string `json:"type"` // "response" or "error"
	ThreadID  string `json:"thread_id"`
	Content   string `json:"content"`
	ToolCalls int    `json:"tool_calls,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendWSError(conn, "", "invalid message format")
			continue
		}
		if req.Content == "" {
			s.sendWSError(conn, req.ThreadID, "content is required")
			continue
		}

		result, err := s.orch.RunTurn(r.Context(), req.RiderID, req.ThreadID, req.Content)
		if err != nil {
			s.sendWSError(conn, req.ThreadID, "turn failed: "+err.Error())
			continue
		}

		s.sendWS(conn, wsResponse{
			Type:      "response",
			ThreadID:  result.ThreadID,
			Content:   result.Reply,
			ToolCalls: result.ToolCalls,
		})
	}
}

func (s *Server) sendWS(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendWSError(conn *websocket.Conn, threadID, message string) {
	s.sendWS(conn, wsResponse{Type: "error", ThreadID: threadID, Content: message})
}
