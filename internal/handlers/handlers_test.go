package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hubpsp-backend/internal/config"
	"hubpsp-backend/internal/handlers"
	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	engine *services.PlatformEngine
	store  *services.MemoryStore
	jwt    *services.JWTService
}

func newTestServer(t *testing.T, store *services.MemoryStore) *testServer {
	t.Helper()
	engine, err := services.NewPlatformEngine(config.DefaultRules())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	if store == nil {
		store = services.NewMemoryStore()
	}
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test-secret", JWTTTL: time.Hour})

	router := handlers.NewRouter(handlers.RouterDeps{
		Engine:       engine,
		Persister:    services.NewPersister(engine, store, nil),
		JWT:          jwtService,
		StartingSeed: models.PlatformUserSeed{Coins: 1000},
	})

	return &testServer{router: router, engine: engine, store: store, jwt: jwtService}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateToken(userID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode %s %s response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, resp
}

func coinsOf(t *testing.T, resp map[string]any, section string) int64 {
	t.Helper()
	view, ok := resp[section].(map[string]any)
	if !ok {
		t.Fatalf("Missing %s in response %v", section, resp)
	}
	return int64(view["coins"].(float64))
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t, nil)

	status, resp := s.do(t, http.MethodPost, "/api/session", "", map[string]string{"user_id": "alice"})
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, resp)
	}
	claims, err := s.jwt.ValidateToken(resp["token"].(string))
	if err != nil || claims.UserID != "alice" {
		t.Fatalf("Expected valid token for alice, got %v %v", claims, err)
	}

	status, resp = s.do(t, http.MethodPost, "/api/session", "", nil)
	if status != http.StatusOK || resp["user_id"] != models.GuestUserID {
		t.Errorf("Expected guest session, got %d %v", status, resp)
	}
}

func TestStateRequiresInit(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.do(t, http.MethodGet, "/api/platform/state", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("Expected 404 for uninitialized guest, got %d", status)
	}
	if s.engine.HasUser(models.GuestUserID) {
		t.Error("Reading state must not provision the user")
	}
}

func TestRoundLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "alice")

	status, resp := s.do(t, http.MethodPost, "/api/platform/init", token, nil)
	if status != http.StatusOK {
		t.Fatalf("Failed to init: %d %v", status, resp)
	}
	if coinsOf(t, resp, "state") != 1000 {
		t.Fatalf("Expected 1000 starting coins, got %v", resp)
	}

	status, resp = s.do(t, http.MethodPost, "/api/games/snake/start", token, map[string]int64{"min_bet": 10})
	if status != http.StatusOK || coinsOf(t, resp, "balance") != 990 {
		t.Fatalf("Expected 990 after entry fee, got %d %v", status, resp)
	}

	status, resp = s.do(t, http.MethodPost, "/api/games/snake/finish", token, map[string]any{
		"score":      200,
		"difficulty": "MEDIUM",
		"won":        true,
	})
	if status != http.StatusOK {
		t.Fatalf("Failed to finish: %d %v", status, resp)
	}
	result := resp["result"].(map[string]any)
	total := int64(result["total_coins_awarded"].(float64))
	if int64(result["base_reward"].(float64)) != 30 {
		t.Errorf("Expected base reward 30, got %v", result["base_reward"])
	}
	if coinsOf(t, resp, "balance") != 990+total {
		t.Errorf("Expected %d coins, got %v", 990+total, resp["balance"])
	}

	status, resp = s.do(t, http.MethodPost, "/api/games/snake/refund", token, map[string]int64{"amount": 10})
	if status != http.StatusOK || coinsOf(t, resp, "balance") != 1000+total {
		t.Errorf("Expected refund to restore the fee, got %d %v", status, resp)
	}

	status, resp = s.do(t, http.MethodGet, "/api/platform/movements?limit=100", token, nil)
	if status != http.StatusOK {
		t.Fatalf("Failed to list movements: %d %v", status, resp)
	}
	if int(resp["count"].(float64)) != len(s.engine.Movements("alice")) {
		t.Errorf("Expected %d movements, got %v", len(s.engine.Movements("alice")), resp["count"])
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "bob")
	s.do(t, http.MethodPost, "/api/platform/init", token, nil)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"insufficient funds", "/api/games/snake/start", map[string]int64{"min_bet": 5000}, http.StatusConflict},
		{"negative bet", "/api/games/snake/start", map[string]int64{"min_bet": -1}, http.StatusBadRequest},
		{"unknown difficulty", "/api/games/snake/finish", map[string]any{"score": 10, "difficulty": "NIGHTMARE"}, http.StatusBadRequest},
		{"negative score", "/api/games/snake/finish", map[string]any{"score": -10, "difficulty": "EASY"}, http.StatusBadRequest},
		{"overdraw gems", "/api/economy", map[string]int64{"gems": -1}, http.StatusConflict},
		{"negative xp", "/api/economy", map[string]int64{"xp": -5}, http.StatusBadRequest},
		{"missing refund amount", "/api/games/snake/refund", map[string]int64{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := s.do(t, http.MethodPost, tt.path, token, tt.body)
			if status != tt.status {
				t.Errorf("Expected %d, got %d: %v", tt.status, status, resp)
			}
		})
	}

	if s.engine.GetCoins("bob") != 1000 || s.engine.GetGems("bob") != 0 {
		t.Errorf("Failed requests changed the wallet: %d/%d", s.engine.GetCoins("bob"), s.engine.GetGems("bob"))
	}

	status, _ := s.do(t, http.MethodPost, "/api/games/snake/finish", s.token(t, "stranger"), map[string]any{"score": 1, "difficulty": "EASY"})
	if status != http.StatusNotFound {
		t.Errorf("Expected 404 for uninitialized user, got %d", status)
	}

	status, _ = s.do(t, http.MethodGet, "/api/platform/state", "broken", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad token, got %d", status)
	}
}

func TestEconomyUpdate(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "carol")
	s.do(t, http.MethodPost, "/api/platform/init", token, nil)

	status, resp := s.do(t, http.MethodPost, "/api/economy", token, map[string]int64{"coins": -200, "gems": 5, "xp": 1000})
	if status != http.StatusOK {
		t.Fatalf("Failed to update economy: %d %v", status, resp)
	}
	state := resp["state"].(map[string]any)
	if int64(state["coins"].(float64)) != 800 || int64(state["gems"].(float64)) != 5 {
		t.Errorf("Expected 800/5, got %v", state)
	}
	progress := state["progress"].(map[string]any)
	if int(progress["level"].(float64)) != 2 {
		t.Errorf("Expected level 2, got %v", progress["level"])
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	store := services.NewMemoryStore()
	first := newTestServer(t, store)
	token := first.token(t, "dave")

	first.do(t, http.MethodPost, "/api/platform/init", token, nil)
	first.do(t, http.MethodPost, "/api/games/pong/finish", token, map[string]any{"score": 1500, "difficulty": "HARD", "won": true})
	coins := first.engine.GetCoins("dave")

	second := newTestServer(t, store)
	status, resp := second.do(t, http.MethodGet, "/api/platform/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected restored state, got %d %v", status, resp)
	}
	if coinsOf(t, resp, "state") != coins {
		t.Errorf("Expected %d coins after restart, got %v", coins, resp["state"])
	}

	status, resp = second.do(t, http.MethodPost, "/api/platform/init", token, nil)
	if status != http.StatusOK || coinsOf(t, resp, "state") != coins {
		t.Errorf("Re-init after restart must keep the balance, got %d %v", status, resp)
	}
}

func TestCatalog(t *testing.T) {
	s := newTestServer(t, nil)

	status, resp := s.do(t, http.MethodGet, "/api/catalog", "", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(resp["achievements"].([]any)) != len(config.DefaultRules().Achievements) {
		t.Errorf("Unexpected achievements %v", resp["achievements"])
	}
	if len(resp["missions"].([]any)) != len(config.DefaultRules().Missions) {
		t.Errorf("Unexpected missions %v", resp["missions"])
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) handlers.Message {
	t.Helper()
	for i := 0; i < 10; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg handlers.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("Did not receive %s", msgType)
	return handlers.Message{}
}

func TestWebSocketPushesState(t *testing.T) {
	s := newTestServer(t, nil)
	if err := s.engine.InitUser("erin", &models.PlatformUserSeed{Coins: 100}); err != nil {
		t.Fatalf("Failed to init user: %v", err)
	}

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?token=" + s.token(t, "erin")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	initial := readUntil(t, conn, "STATE_UPDATE")
	if data := initial.Data.(map[string]any); data["coins"].(float64) != 100 {
		t.Errorf("Expected 100 coins in initial state, got %v", data)
	}

	if err := conn.WriteJSON(handlers.Message{Type: "PING"}); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}
	readUntil(t, conn, "PONG")

	if err := s.engine.UpdateEconomy("erin", models.EconomyChange{Coins: 25}); err != nil {
		t.Fatalf("Failed to update economy: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msg := readUntil(t, conn, "STATE_UPDATE")
		if msg.Data.(map[string]any)["coins"].(float64) == 125 {
			return
		}
	}
	t.Error("Did not receive a state update with 125 coins")
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	s := newTestServer(t, nil)
	s.engine.InitUser("frank", nil)

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?token=" + s.token(t, "frank")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	readUntil(t, conn, "STATE_UPDATE")
	if s.engine.ListenerCount() != 1 {
		t.Fatalf("Expected one listener, got %d", s.engine.ListenerCount())
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for s.engine.ListenerCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.engine.ListenerCount() != 0 {
		t.Errorf("Expected listener removed after close, got %d", s.engine.ListenerCount())
	}
}
