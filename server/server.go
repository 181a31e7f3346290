package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/serpientes/gameserver/broadcast"
	"github.com/serpientes/gameserver/game"
	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/logger"
	"github.com/serpientes/gameserver/models"
	"github.com/serpientes/gameserver/monitor"
	"github.com/serpientes/gameserver/network"
	"github.com/serpientes/gameserver/persistence"
	"github.com/serpientes/gameserver/room"
	"github.com/serpientes/gameserver/session"
)

// GameServer terminates websocket connections and dispatches command
// envelopes to the room manager and the game engine. Replies echo the
// command name as the event; failures arrive as Error envelopes.
type GameServer struct {
	addr         string
	upgrader     websocket.Upgrader
	store        persistence.Store
	rooms        *room.Manager
	engine       *game.Engine
	sessions     *session.Manager
	monitor      *monitor.Monitor
	shutdownChan chan struct{}
}

func NewGameServer(addr string, store persistence.Store, rooms *room.Manager, engine *game.Engine, sessions *session.Manager, mon *monitor.Monitor) *GameServer {
	return &GameServer{
		addr:         addr,
		store:        store,
		rooms:        rooms,
		engine:       engine,
		sessions:     sessions,
		monitor:      mon,
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *GameServer) Start() error {
	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	username := r.URL.Query().Get("username")
	if userID == "" || username == "" {
		http.Error(w, "user_id and username are required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, userID, username)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, userID, username string) {
	if err := s.ensureUser(userID, username); err != nil {
		logger.Log.Warnf("Rejecting connection for user %s: %v", userID, err)
		conn.Close()
		return
	}

	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.UserID = userID
	sess.Username = username
	s.sessions.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, user %s, session %s", wsConn.RemoteAddr(), userID, sess.ID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session %s", wsConn.RemoteAddr(), sess.ID)
		s.sessions.Remove(sess.ID)
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			env, err := wsConn.ReadEnvelope()
			if err != nil {
				return
			}
			s.handleEnvelope(sess, env)
		}
	}
}

// ensureUser registers first-time visitors. Identity is trusted input;
// authentication lives outside this server.
func (s *GameServer) ensureUser(userID, username string) error {
	if _, err := s.store.GetUser(userID); err == nil {
		return nil
	} else if gameerr.KindOf(err) != gameerr.KindNotFound {
		return err
	}
	err := s.store.CreateUser(&models.User{ID: userID, Username: username})
	if gameerr.KindOf(err) == gameerr.KindConflict {
		// Lost a registration race with another session of the same user.
		return nil
	}
	return err
}

func (s *GameServer) handleEnvelope(sess *session.Session, env *network.Envelope) {
	start := time.Now()
	if s.monitor != nil {
		s.monitor.IncMessagesReceived()
		defer func() {
			s.monitor.ObserveCommandLatency(time.Since(start))
		}()
	}

	switch env.Event {
	case network.CmdHeartbeat:
		sess.LastActive = time.Now()
	case network.CmdCreateRoom:
		s.handleCreateRoom(sess, env.Data)
	case network.CmdJoinRoom:
		s.handleJoinRoom(sess, env.Data)
	case network.CmdListRooms:
		s.handleListRooms(sess)
	case network.CmdGetRoomDetail:
		s.handleGetRoomDetail(sess, env.Data)
	case network.CmdJoinLobbyGroup:
		s.handleJoinLobbyGroup(sess, env.Data)
	case network.CmdLeaveLobbyGroup:
		s.handleLeaveLobbyGroup(sess, env.Data)
	case network.CmdCreateGame:
		s.handleCreateGame(sess, env.Data)
	case network.CmdJoinGameGroup:
		s.handleJoinGameGroup(sess, env.Data)
	case network.CmdLeaveGameGroup:
		s.handleLeaveGameGroup(sess, env.Data)
	case network.CmdGetGameState:
		s.handleGetGameState(sess, env.Data)
	case network.CmdRollDice:
		s.handleRollDice(sess, env.Data)
	case network.CmdAnswerQuizQuestion:
		s.handleAnswerQuiz(sess, env.Data)
	case network.CmdSurrender:
		s.handleSurrender(sess, env.Data)
	case network.CmdSendEmote:
		s.handleSendEmote(sess, env.Data)
	default:
		logger.Log.Infof("Unknown command %q from session %s", env.Event, sess.ID)
		s.sendError(sess, gameerr.Validationf("unknown command %q", env.Event))
	}
}

type createRoomRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
	IsPrivate  bool   `json:"is_private"`
	AccessCode string `json:"access_code"`
}

func (s *GameServer) handleCreateRoom(sess *session.Session, data json.RawMessage) {
	var req createRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed CreateRoom payload"))
		return
	}

	created, err := s.rooms.CreateRoom(req.Name, req.MaxPlayers, sess.UserID, req.IsPrivate, req.AccessCode)
	if err != nil {
		s.sendError(sess, err)
		return
	}

	summary, err := s.rooms.Summary(created.ID)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	sess.Send(network.CmdCreateRoom, summary)
}

type joinRoomRequest struct {
	RoomID     string `json:"room_id"`
	AccessCode string `json:"access_code"`
}

func (s *GameServer) handleJoinRoom(sess *session.Session, data json.RawMessage) {
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed JoinRoom payload"))
		return
	}

	player, err := s.rooms.JoinRoom(req.RoomID, sess.UserID, req.AccessCode)
	if err != nil {
		s.sendError(sess, err)
		return
	}

	// Joining the room implies following its lobby.
	s.sessions.JoinGroup(broadcast.LobbyGroup(req.RoomID), sess.ID)
	sess.Send(network.CmdJoinRoom, player)
}

func (s *GameServer) handleListRooms(sess *session.Session) {
	rooms, err := s.rooms.ListAvailableRooms()
	if err != nil {
		s.sendError(sess, err)
		return
	}

	summaries := make([]*models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summary, err := s.rooms.Summary(r.ID)
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}
	sess.Send(network.CmdListRooms, summaries)
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

func (s *GameServer) handleGetRoomDetail(sess *session.Session, data json.RawMessage) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed GetRoomDetail payload"))
		return
	}

	summary, err := s.rooms.Summary(req.RoomID)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	sess.Send(network.CmdGetRoomDetail, summary)
}

func (s *GameServer) handleJoinLobbyGroup(sess *session.Session, data json.RawMessage) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed JoinLobbyGroup payload"))
		return
	}

	if _, err := s.rooms.Summary(req.RoomID); err != nil {
		s.sendError(sess, err)
		return
	}
	s.sessions.JoinGroup(broadcast.LobbyGroup(req.RoomID), sess.ID)
	s.broadcastLobby(req.RoomID, broadcast.EventLobbyPlayerJoined, sess)
}

func (s *GameServer) handleLeaveLobbyGroup(sess *session.Session, data json.RawMessage) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed LeaveLobbyGroup payload"))
		return
	}
	s.sessions.LeaveGroup(broadcast.LobbyGroup(req.RoomID), sess.ID)
	s.broadcastLobby(req.RoomID, broadcast.EventLobbyPlayerLeft, sess)
}

func (s *GameServer) broadcastLobby(roomID, event string, sess *session.Session) {
	payload := map[string]string{
		"room_id":  roomID,
		"user_id":  sess.UserID,
		"username": sess.Username,
	}
	for _, member := range s.sessions.GroupSessions(broadcast.LobbyGroup(roomID)) {
		member.Send(event, payload)
	}
}

func (s *GameServer) handleCreateGame(sess *session.Session, data json.RawMessage) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed CreateGame payload"))
		return
	}

	created, err := s.engine.CreateGame(req.RoomID)
	if err != nil {
		s.sendError(sess, err)
		return
	}

	s.sessions.JoinGroup(broadcast.GameGroup(created.ID), sess.ID)
	if s.monitor != nil {
		s.monitor.IncActiveGames()
	}
	sess.Send(network.CmdCreateGame, created)
}

type gameRequest struct {
	GameID string `json:"game_id"`
}

func (s *GameServer) handleJoinGameGroup(sess *session.Session, data json.RawMessage) {
	var req gameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed JoinGameGroup payload"))
		return
	}

	state, err := s.engine.State(req.GameID)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	s.sessions.JoinGroup(broadcast.GameGroup(req.GameID), sess.ID)
	sess.Send(broadcast.EventGameStateUpdate, state)
}

func (s *GameServer) handleLeaveGameGroup(sess *session.Session, data json.RawMessage) {
	var req gameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed LeaveGameGroup payload"))
		return
	}
	s.sessions.LeaveGroup(broadcast.GameGroup(req.GameID), sess.ID)
}

func (s *GameServer) handleGetGameState(sess *session.Session, data json.RawMessage) {
	var req gameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed GetGameState payload"))
		return
	}

	state, err := s.engine.State(req.GameID)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	sess.Send(network.CmdGetGameState, state)
}

func (s *GameServer) handleRollDice(sess *session.Session, data json.RawMessage) {
	var req gameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed RollDice payload"))
		return
	}

	result, err := s.engine.RollAndMove(req.GameID, sess.UserID)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	if s.monitor != nil {
		s.monitor.IncMovesResolved()
		if result.IsWinner {
			s.monitor.IncGamesFinished()
			s.monitor.DecActiveGames()
		}
	}
	sess.Send(network.CmdRollDice, result)
}

type answerRequest struct {
	GameID string `json:"game_id"`
	Answer string `json:"answer"`
}

func (s *GameServer) handleAnswerQuiz(sess *session.Session, data json.RawMessage) {
	var req answerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed AnswerQuizQuestion payload"))
		return
	}

	result, err := s.engine.AnswerQuizQuestion(req.GameID, sess.UserID, req.Answer)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	if s.monitor != nil {
		s.monitor.IncMovesResolved()
	}
	sess.Send(network.CmdAnswerQuizQuestion, result)
}

func (s *GameServer) handleSurrender(sess *session.Session, data json.RawMessage) {
	var req gameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed Surrender payload"))
		return
	}

	if err := s.engine.Surrender(req.GameID, sess.UserID); err != nil {
		s.sendError(sess, err)
		return
	}
	s.sessions.LeaveGroup(broadcast.GameGroup(req.GameID), sess.ID)
	sess.Send(network.CmdSurrender, map[string]string{"game_id": req.GameID})
}

type emoteRequest struct {
	GameID  string `json:"game_id"`
	EmoteID string `json:"emote_id"`
}

// handleSendEmote relays an emote to the game group. Emotes never touch
// game state and need no turn.
func (s *GameServer) handleSendEmote(sess *session.Session, data json.RawMessage) {
	var req emoteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(sess, gameerr.Validationf("malformed SendEmote payload"))
		return
	}
	if req.EmoteID == "" {
		s.sendError(sess, gameerr.Validationf("emote_id must not be empty"))
		return
	}

	emote := models.EmoteMessage{
		GameID:   req.GameID,
		UserID:   sess.UserID,
		Username: sess.Username,
		EmoteID:  req.EmoteID,
		SentAt:   time.Now(),
	}
	for _, member := range s.sessions.GroupSessions(broadcast.GameGroup(req.GameID)) {
		member.Send(broadcast.EventReceiveEmote, emote)
	}
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	payload := errorPayload{
		Kind:    gameerr.KindOf(err).String(),
		Message: err.Error(),
	}
	if sendErr := sess.Send(broadcast.EventError, payload); sendErr != nil {
		logger.Log.Warnf("Sending error to session %s failed: %v", sess.ID, sendErr)
	}
}
