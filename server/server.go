package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/wfunc/chaseserver/broadcast"
	"github.com/wfunc/chaseserver/game"
	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/monitor"
	"github.com/wfunc/chaseserver/network"
	"github.com/wfunc/chaseserver/persistence"
	"github.com/wfunc/chaseserver/room"
	chaserpc "github.com/wfunc/chaseserver/rpc"
	"github.com/wfunc/chaseserver/services"
	"github.com/wfunc/chaseserver/session"
	"github.com/wfunc/chaseserver/timer"
)

const heartbeatInterval = 30 * time.Second

// Options 接线用的可选部件
type Options struct {
	Addr      string
	RPCAddr   string
	JWTSecret string
	// 非空时事件经 Redis pub/sub 转发，支撑多实例部署
	RedisClient *redis.Client
	Monitor     *monitor.Monitor
	Rooms       room.ManagerConfig
}

type GameServer struct {
	addr           string
	jwtSecret      []byte
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	timers         *timer.Manager
	monitor        *monitor.Monitor
	rpcServer      *chaserpc.Server
	fanout         *broadcast.RedisPublisher
	fanoutCancel   context.CancelFunc
	shutdownChan   chan struct{}
}

func NewGameServer(opts Options, db persistence.Database) *GameServer {
	s := &GameServer{
		addr:           opts.Addr,
		jwtSecret:      []byte(opts.JWTSecret),
		sessionManager: session.NewManager(),
		timers:         timer.NewManager(),
		monitor:        opts.Monitor,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	var matchObserver services.MatchObserver
	if opts.Monitor != nil {
		matchObserver = opts.Monitor
	}
	ratingService := services.NewRatingService(db, matchObserver)
	s.roomManager = room.NewManager(s.timers, ratingService, opts.Rooms)

	// 广播器依赖注册表解析收件人，建好后回填
	local := broadcast.NewRoomPublisher(s.roomManager, s.sessionManager)
	if opts.RedisClient != nil {
		s.fanout = broadcast.NewRedisPublisher(opts.RedisClient, local)
		s.roomManager.SetPublisher(s.fanout)
	} else {
		s.roomManager.SetPublisher(local)
	}

	// 初始化RPC服务器
	rpcServer, err := chaserpc.NewServer(opts.RPCAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(chaserpc.NewRatingQueryService(db))

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	if s.fanout != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.fanoutCancel = cancel
		go func() {
			if err := s.fanout.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Errorf("redis fanout stopped: %v", err)
			}
		}()
	}

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	if s.fanoutCancel != nil {
		s.fanoutCancel()
	}
	s.rpcServer.Stop()
	s.roomManager.Stop()
	s.timers.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.roomManager.Leave(sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
			s.monitor.SetActiveRooms(s.roomManager.Count())
		}
		wsConn.Close()
	}()

	wsConn.SetHeartbeat(heartbeatInterval)

	for {
		env, err := wsConn.ReadEnvelope()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debugf("session %s read error: %v", sess.GetID(), err)
			}
			return
		}
		s.dispatch(sess, env)
	}
}

// hello 握手负载，token 可选，无 token 按游客处理
type helloPayload struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type identityClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (s *GameServer) dispatch(sess *session.Session, env *network.Envelope) {
	if s.monitor != nil {
		s.monitor.IncIntentsReceived()
	}
	sess.Touch()

	// 握手前只接受 hello 和心跳
	if _, _, identified := sess.Identity(); !identified &&
		env.Event != network.IntentHello && env.Event != network.IntentHeartbeat {
		s.sendError(sess, "hello required")
		return
	}

	switch env.Event {
	case network.IntentHello:
		s.handleHello(sess, env.Data)

	case network.IntentHeartbeat:
		// Touch above is all a heartbeat does.

	case network.IntentCreateRoom:
		var payload struct {
			Name      string `json:"name"`
			Map       string `json:"map"`
			Password  string `json:"password"`
			AllowChat bool   `json:"allowChat"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendError(sess, "bad create-room payload")
			return
		}
		_, err := s.roomManager.CreateRoom(sess, room.CreateOptions{
			Name:      payload.Name,
			MapKey:    payload.Map,
			Password:  payload.Password,
			AllowChat: payload.AllowChat,
		})
		if err != nil {
			s.sendError(sess, err.Error())
			return
		}
		if s.monitor != nil {
			s.monitor.SetActiveRooms(s.roomManager.Count())
		}

	case network.IntentJoinRoom:
		var payload struct {
			RoomID   string `json:"roomId"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendError(sess, "bad join-room payload")
			return
		}
		if err := s.roomManager.Join(sess, payload.RoomID, payload.Password); err != nil {
			s.sendError(sess, err.Error())
		}

	case network.IntentLeaveRoom:
		s.roomManager.Leave(sess.GetID())
		sess.RoomID = ""
		if s.monitor != nil {
			s.monitor.SetActiveRooms(s.roomManager.Count())
		}

	case network.IntentListRooms:
		sess.Send(network.EventRoomsUpdated, map[string]interface{}{
			"rooms": s.roomManager.ListPublicWaiting(),
		})

	case network.IntentSelectRole:
		var payload struct {
			Role string `json:"role"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendError(sess, "bad select-role payload")
			return
		}
		s.withRoom(sess, func(r *room.Room) error {
			return r.SelectRole(sess.GetID(), payload.Role)
		})

	case network.IntentToggleReady:
		s.withRoom(sess, func(r *room.Room) error {
			return r.ToggleReady(sess.GetID())
		})

	case network.IntentStartGame:
		s.withRoom(sess, func(r *room.Room) error {
			return r.Start(sess.GetID())
		})

	case network.IntentRoomChat:
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		if r, ok := s.roomManager.RoomBySession(sess.GetID()); ok {
			r.Chat(sess.GetID(), payload.Message)
		}

	case network.IntentPlayerMove, network.IntentPlayerInput,
		network.IntentCollectCoin, network.IntentCollectPowerup,
		network.IntentUseTeleporter,
		network.IntentPlayerCaught, network.IntentPlayerEscaped:
		if r, ok := s.roomManager.RoomBySession(sess.GetID()); ok {
			r.HandleGameIntent(sess.GetID(), env.Event, env.Data)
		}

	default:
		logger.Log.Debugf("session %s: unknown intent %q dropped", sess.GetID(), env.Event)
	}
}

// handleHello binds an identity to the session. A valid JWT wins; anything
// else falls back to a guest identity so the lobby stays open to everyone.
func (s *GameServer) handleHello(sess *session.Session, data []byte) {
	var payload helloPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			s.sendError(sess, "bad hello payload")
			return
		}
	}

	userID, username := "", ""
	if payload.Token != "" && len(s.jwtSecret) > 0 {
		claims := &identityClaims{}
		token, err := jwt.ParseWithClaims(payload.Token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.jwtSecret, nil
		})
		if err == nil && token.Valid && claims.Subject != "" {
			userID = claims.Subject
			username = claims.Username
		} else {
			logger.Log.Debugf("session %s: invalid token, treating as guest: %v", sess.GetID(), err)
		}
	}

	if userID == "" {
		userID = "guest-" + uuid.NewString()[:8]
	}
	if username == "" {
		username = payload.Username
	}
	if username == "" {
		suffix := userID
		if len(suffix) > 4 {
			suffix = suffix[len(suffix)-4:]
		}
		username = "玩家" + suffix
	}

	sess.Identify(userID, username)
	sess.Send(network.EventWelcome, map[string]interface{}{
		"sessionId": sess.GetID(),
		"userId":    userID,
		"username":  username,
		"heartbeat": heartbeatInterval.Milliseconds(),
		"maps":      game.MapKeys(),
	})
}

func (s *GameServer) withRoom(sess *session.Session, fn func(*room.Room) error) {
	r, ok := s.roomManager.RoomBySession(sess.GetID())
	if !ok {
		s.sendError(sess, room.ErrRoomNotFound.Error())
		return
	}
	if err := fn(r); err != nil {
		s.sendError(sess, err.Error())
	}
}

func (s *GameServer) sendError(sess *session.Session, message string) {
	sess.Send(network.EventError, map[string]interface{}{"message": message})
}
