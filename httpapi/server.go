// Package httpapi exposes the request/response surface of the messaging
// core. Every response uses the same envelope: {"success":true,...} on
// success, {"success":false,"message":...} on failure.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pingr/auth"
	"pingr/domain/chat"
	"pingr/presence"
	"pingr/repositories"
	"pingr/search"
	"pingr/services"
	"pingr/transport"
)

// Searcher is the slice of the search index the API needs.
type Searcher interface {
	Search(ctx context.Context, viewerID, terms string, limit int) ([]search.Hit, error)
}

type Server struct {
	authService services.IAuthService
	messages    services.IMessageService
	users       repositories.IUserRepository
	registry    *presence.Registry
	searcher    Searcher
	mediaDir    string
	bufferSize  int
	upgrader    websocket.Upgrader
	log         *slog.Logger
}

func NewServer(
	authService services.IAuthService,
	messages services.IMessageService,
	users repositories.IUserRepository,
	registry *presence.Registry,
	searcher Searcher,
	mediaDir string,
	bufferSize int,
	log *slog.Logger,
) *Server {
	return &Server{
		authService: authService,
		messages:    messages,
		users:       users,
		registry:    registry,
		searcher:    searcher,
		mediaDir:    mediaDir,
		bufferSize:  bufferSize,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	if s.mediaDir != "" {
		engine.Static("/media", s.mediaDir)
	}

	api := engine.Group("/api")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	messages := api.Group("/messages", auth.Middleware())
	messages.GET("/users", s.handleUsers)
	messages.GET("/conversation/:id", s.handleConversation)
	messages.PUT("/mark", s.handleMark)
	messages.POST("/send/:id", s.handleSend)
	messages.GET("/search", s.handleSearch)

	engine.GET("/ws", auth.Middleware(), s.handleSocket)
	return engine
}

func ok(c *gin.Context, payload gin.H) {
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}

func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": message})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "invalid json")
		return
	}

	token, user, err := s.authService.Register(req.Email, req.FullName, req.Password)
	if err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, gin.H{"token": token, "user": user})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "invalid json")
		return
	}

	token, user, err := s.authService.Login(req.Email, req.Password)
	if err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, gin.H{"token": token, "user": user})
}

// handleUsers returns every other user plus the viewer's unseen-counter
// mapping, both derived from the store at call time.
func (s *Server) handleUsers(c *gin.Context) {
	viewerID := c.GetString(auth.ContextUserKey)

	users, err := s.users.ListOthers(viewerID)
	if err != nil {
		fail(c, err.Error())
		return
	}
	counts, err := s.messages.UnseenCounts(viewerID)
	if err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, gin.H{"users": users, "unseenMessages": counts})
}

// handleConversation returns the ordered conversation with the counterpart.
// Side effect: every receiver-side unseen message transitions to seen and
// receipts fire back to the counterpart.
func (s *Server) handleConversation(c *gin.Context) {
	viewerID := c.GetString(auth.ContextUserKey)
	counterpartID := c.Param("id")

	messages, err := s.messages.OpenConversation(viewerID, counterpartID)
	if err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, gin.H{"messages": messages})
}

type markRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (s *Server) handleMark(c *gin.Context) {
	viewerID := c.GetString(auth.ContextUserKey)

	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "invalid json")
		return
	}

	marked, err := s.messages.MarkSeen(viewerID, req.IDs)
	if err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, gin.H{"marked": marked})
}

func (s *Server) handleSend(c *gin.Context) {
	senderID := c.GetString(auth.ContextUserKey)
	receiverID := c.Param("id")

	if _, err := s.users.GetUserByID(receiverID); err != nil {
		fail(c, err.Error())
		return
	}

	var payload services.SendPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, "invalid json")
		return
	}

	message, err := s.messages.Send(chat.SendMessageCommand{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       payload.Text,
		Image:      payload.Image,
	})
	if err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, gin.H{"newMessage": message})
}

func (s *Server) handleSearch(c *gin.Context) {
	viewerID := c.GetString(auth.ContextUserKey)
	terms := c.Query("q")
	if terms == "" {
		fail(c, "missing query")
		return
	}

	hits, err := s.searcher.Search(c.Request.Context(), viewerID, terms, 20)
	if err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, gin.H{"results": hits})
}

// handleSocket upgrades to the live channel and ties its lifetime to the
// request. Registration replaces any previous channel for the user; the
// deferred unregister is a no-op if someone reconnected in the meantime.
func (s *Server) handleSocket(c *gin.Context) {
	viewerID := c.GetString(auth.ContextUserKey)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "user_id", viewerID, "error", err)
		return
	}

	channel := transport.NewSocketChannel(viewerID, conn, s.bufferSize, s.log)
	s.registry.Register(viewerID, channel)
	defer s.registry.Unregister(viewerID, channel)

	go channel.WritePump()
	channel.ReadPump(func(ids []uuid.UUID) {
		if _, err := s.messages.MarkSeen(viewerID, ids); err != nil {
			s.log.Error("Inbound markSeen failed", "user_id", viewerID, "error", err)
		}
	})
}
