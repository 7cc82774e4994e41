package http_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/samirrijal/prelevements/internal/core/selection"
)

type wsFrame struct {
	Type  string             `json:"type"`
	Data  selection.Snapshot `json:"data"`
	Error string             `json:"error"`
}

func dialSession(t *testing.T, id string) (*websocket.Conn, *selection.Registry) {
	t.Helper()
	deps := makeDeps()
	app := setupApp(deps)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	if id == "" {
		s := deps.Sessions.Create(context.Background())
		deps.Sessions.Wait()
		id = s.ID()
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws?session="+id, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, deps.Sessions
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func TestWebSocket_SelectThenSessionClosed(t *testing.T) {
	conn, sessions := dialSession(t, "")

	first := readFrame(t, conn)
	if first.Type != "snapshot" || first.Data.List.Total != 3 {
		t.Fatalf("unexpected first frame %+v", first)
	}

	if err := conn.WriteJSON(map[string]any{"action": "select", "point_id": 1}); err != nil {
		t.Fatal(err)
	}
	for {
		f := readFrame(t, conn)
		if f.Type == "error" {
			t.Fatalf("select failed: %s", f.Error)
		}
		if f.Data.SelectedID() == "1" {
			break
		}
	}

	if err := sessions.Delete(first.Data.SessionID); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Fatalf("expected a normal close frame, got %v", err)
		}
		break
	}
}

func TestWebSocket_ClientLeavesSessionOpen(t *testing.T) {
	conn, sessions := dialSession(t, "")
	first := readFrame(t, conn)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	s, err := sessions.Get(first.Data.SessionID)
	if err != nil {
		t.Fatalf("session must outlive its connection: %v", err)
	}
	if _, err := s.Select("2"); err != nil {
		t.Errorf("session unusable after the client left: %v", err)
	}
}

func TestWebSocket_UnknownSession(t *testing.T) {
	conn, _ := dialSession(t, "missing")
	f := readFrame(t, conn)
	if f.Type != "error" || f.Error == "" {
		t.Errorf("expected an error frame, got %+v", f)
	}
}
