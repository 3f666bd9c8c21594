// Package server is a development backend implementing the contract the
// client speaks: /api/v1 REST plus a /ws push channel. It exists so the
// client can be run and integration-tested without a production
// deployment; it is not part of the client core.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"chatterm/pkg/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server bundles the HTTP surface, the database and the push hub.
type Server struct {
	db     *gorm.DB
	hub    *Hub
	engine *gin.Engine
}

// New wires the routes. Callers own the db lifecycle.
func New(db *gorm.DB) *Server {
	s := &Server{db: db, hub: NewHub()}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(rateLimit(newIPLimiter(30, 50)))

	v1 := r.Group("/api/v1")
	v1.POST("/login", s.handleLogin)
	v1.POST("/signup", s.handleSignup)

	authed := v1.Group("/")
	authed.Use(requireAuth())
	authed.GET("/channels", s.handleListChannels)
	authed.GET("/messages", s.handleListMessages)
	authed.POST("/channels", s.handleCreateChannel)
	authed.PATCH("/channels/:id", s.handleRenameChannel)
	authed.PUT("/channels/:id", s.handleRenameChannel)
	authed.DELETE("/channels/:id", s.handleDeleteChannel)
	authed.POST("/messages", s.handleSendMessage)

	r.GET("/ws", s.handleSocket)

	s.engine = r
	return s
}

// Handler exposes the router for httptest servers.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

type credentialsInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var in credentialsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	var user User
	if err := s.db.First(&user, "username = ?", in.Username).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid username or password"})
		return
	}
	if !verifyPassword(in.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid username or password"})
		return
	}

	token, err := generateToken(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleSignup(c *gin.Context) {
	var in credentialsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	var existing User
	if err := s.db.First(&existing, "username = ?", in.Username).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
		return
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "password hashing failed"})
		return
	}

	user := User{Username: in.Username, PasswordHash: hash}
	if err := s.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
		return
	}

	token, err := generateToken(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleListChannels(c *gin.Context) {
	var channels []Channel
	if err := s.db.Find(&channels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to fetch channels"})
		return
	}

	out := make([]chat.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, ch.toWire())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListMessages(c *gin.Context) {
	var messages []Message
	if err := s.db.Order("timestamp asc").Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to fetch messages"})
		return
	}

	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.toWire())
	}
	c.JSON(http.StatusOK, out)
}

type channelNameInput struct {
	Name string `json:"name" binding:"required"`
}

// checkChannelName enforces the naming rules: 3-20 characters, unique
// case-insensitively, excluding selfID when renaming.
func (s *Server) checkChannelName(name, selfID string) error {
	trimmed := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmed); n < 3 || n > 20 {
		return errors.New("channel name must be 3 to 20 characters")
	}
	var existing Channel
	err := s.db.First(&existing, "LOWER(name) = LOWER(?) AND id <> ?", trimmed, selfID).Error
	if err == nil {
		return errors.New("name must be unique")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *Server) handleCreateChannel(c *gin.Context) {
	var in channelNameInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := s.checkChannelName(in.Name, ""); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	ch := Channel{Name: strings.TrimSpace(in.Name), Removable: true}
	if err := s.db.Create(&ch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create channel"})
		return
	}

	s.hub.Broadcast(chat.EventNewChannel, ch.toWire())
	c.JSON(http.StatusCreated, ch.toWire())
}

func (s *Server) handleRenameChannel(c *gin.Context) {
	var in channelNameInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	var ch Channel
	if err := s.db.First(&ch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "channel not found"})
		return
	}
	if !ch.Removable {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "default channels cannot be renamed"})
		return
	}
	if err := s.checkChannelName(in.Name, ch.ID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	ch.Name = strings.TrimSpace(in.Name)
	if err := s.db.Save(&ch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to rename channel"})
		return
	}

	s.hub.Broadcast(chat.EventRenameChannel, ch.toWire())
	c.JSON(http.StatusOK, ch.toWire())
}

func (s *Server) handleDeleteChannel(c *gin.Context) {
	var ch Channel
	if err := s.db.First(&ch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "channel not found"})
		return
	}
	if !ch.Removable {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "default channels cannot be removed"})
		return
	}

	if err := s.db.Delete(&Message{}, "channel_id = ?", ch.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to delete channel messages"})
		return
	}
	if err := s.db.Delete(&ch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to delete channel"})
		return
	}

	s.hub.Broadcast(chat.EventRemoveChannel, chat.RemoveChannelPayload{ID: ch.ID})
	c.Status(http.StatusNoContent)
}

type sendMessageInput struct {
	ChannelID string `json:"channelId" binding:"required"`
	Body      string `json:"body" binding:"required"`
	Username  string `json:"username" binding:"required"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var in sendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	var ch Channel
	if err := s.db.First(&ch, "id = ?", in.ChannelID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "channel not found"})
		return
	}

	msg := Message{
		ChannelID: in.ChannelID,
		Username:  in.Username,
		Body:      in.Body,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.db.Create(&msg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to store message"})
		return
	}

	s.hub.Broadcast(chat.EventNewMessage, msg.toWire())
	c.JSON(http.StatusCreated, msg.toWire())
}

// handleSocket authenticates the connection-time credential and hands
// the connection to the hub.
func (s *Server) handleSocket(c *gin.Context) {
	token, err := bearerToken(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}
	if _, err := validateToken(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.hub.Serve(conn)
}
