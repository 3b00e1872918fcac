package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/keyholdgame/keyhold-backend/internal/entity"
)

const sendBuffer = 16

type gameManager interface {
	CreateGame(ctx context.Context, sessionID string) (*entity.Game, error)
	ConnectToGame(ctx context.Context, gameID, sessionID string) (*entity.Game, error)
	GameState(ctx context.Context, gameID string) (*entity.Game, error)
	SessionGameID(ctx context.Context, sessionID string) (string, error)

	JoinSlot(ctx context.Context, gameID string, slot int) (*entity.Game, error)
	LeaveSlot(ctx context.Context, gameID string, slot int) (*entity.Game, error)
	RenameSlot(ctx context.Context, gameID string, slot int, name string) (*entity.Game, error)
	StartGame(ctx context.Context, gameID string) (*entity.Game, error)
	ResetGame(ctx context.Context, gameID string) (*entity.Game, error)
	AssignNextKey(ctx context.Context, gameID string) (*entity.Game, error)
	ApplyKeyEvent(ctx context.Context, gameID, rawKey string, down bool) (*entity.Game, error)
}

// client is one websocket connection: the host keyboard or a spectator
// screen. Writes go through the send channel so the write pump is the only
// goroutine touching the connection.
type client struct {
	conn      *websocket.Conn
	send      chan *Message
	sessionID string

	mu     sync.Mutex
	gameID string
}

func (that *client) game() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.gameID
}

func (that *client) setGame(id string) {
	that.mu.Lock()
	that.gameID = id
	that.mu.Unlock()
}

type Server struct {
	logger  *slog.Logger
	manager gameManager

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, cl *client, message *Message) error

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

func New(logger *slog.Logger, manager gameManager) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The rendering layer is served elsewhere during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, *client, *Message) error),
		rooms:    make(map[string]map[*client]struct{}),
	}

	server.handlers["connect"] = server.handleConnect
	server.handlers["game:new"] = server.handleNewGame
	server.handlers["game:join"] = server.handleJoinGame
	server.handlers["game:start"] = server.handleStart
	server.handlers["game:reset"] = server.handleReset
	server.handlers["game:assign"] = server.handleAssign
	server.handlers["game:state"] = server.handleState
	server.handlers["slot:join"] = server.handleSlotJoin
	server.handlers["slot:leave"] = server.handleSlotLeave
	server.handlers["slot:rename"] = server.handleSlotRename
	server.handlers["key"] = server.handleKey

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveWS(ctx, w, r)
	})

	// No read/write timeouts: game connections are long-lived.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWS upgrades the connection and runs the read loop.
func (that *Server) serveWS(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveWS")

	sessionID := that.sessionID(writer, req)

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	cl := &client{
		conn:      conn,
		send:      make(chan *Message, sendBuffer),
		sessionID: sessionID,
	}

	log.Info("WebSocket connection established", "session", sessionID)

	go that.writePump(cl)
	that.readPump(ctx, cl)
}

func (that *Server) readPump(ctx context.Context, cl *client) {
	log := that.logger.With("method", "readPump")

	defer func() {
		that.unsubscribe(cl)
		close(cl.send)
		_ = cl.conn.Close()
	}()

	for {
		var message Message
		if err := cl.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			cl.send <- errorMessage(message.Action, "unknown action")
			continue
		}

		if err := handler(ctx, cl, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

func (that *Server) writePump(cl *client) {
	for message := range cl.send {
		if err := cl.conn.WriteJSON(message); err != nil {
			that.logger.Error("failed to write message", "error", err)
			return
		}
	}
}

// sessionID reads the session cookie, minting one on first contact.
func (that *Server) sessionID(writer http.ResponseWriter, req *http.Request) string {
	cookie, err := req.Cookie("user_session")
	if err == nil {
		return cookie.Value
	}

	cookie = &http.Cookie{
		Name:    "user_session",
		Value:   uuid.NewString(),
		Expires: time.Now().Add(24 * time.Hour),
		Path:    "/ws",
	}
	http.SetCookie(writer, cookie)

	return cookie.Value
}

// subscribe attaches the client to a game room for state pushes.
func (that *Server) subscribe(cl *client, gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if old := cl.game(); old != "" && old != gameID {
		if room, ok := that.rooms[old]; ok {
			delete(room, cl)
		}
	}

	room, ok := that.rooms[gameID]
	if !ok {
		room = make(map[*client]struct{})
		that.rooms[gameID] = room
	}
	room[cl] = struct{}{}

	cl.setGame(gameID)
}

func (that *Server) unsubscribe(cl *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if room, ok := that.rooms[cl.game()]; ok {
		delete(room, cl)
	}
}

// broadcast pushes a state snapshot to everyone watching the game.
func (that *Server) broadcast(gameID string, game *entity.Game) {
	message := stateMessage(game)

	that.mu.Lock()
	defer that.mu.Unlock()

	for cl := range that.rooms[gameID] {
		select {
		case cl.send <- message:
		default:
			// Slow consumer; the next push will catch it up.
		}
	}
}
