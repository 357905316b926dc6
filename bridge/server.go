package bridge

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
	"adsift/wsync"
)

const (
	MAIN_CONTEXT = "main"

	HANDSHAKE_SLOTS   = 2
	HANDSHAKE_WAITERS = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BridgeServer is the worker side of the message bridge. It accepts a single
// main-context connection, pushes queued messages to it in order and hands
// inbound messages to HandleMessage.
type BridgeServer struct {
	config     BridgeConfig
	httpServer *http.Server
	connMap    *wsync.CheckedMap
	connMutex  *wsync.Semaphore
	outbound   chan atypes.Message

	HandleMessage func(message atypes.Message)
}

func NewBridgeServer(config BridgeConfig) *BridgeServer {
	bs := &BridgeServer{
		config:    config,
		connMap:   wsync.NewCheckedMap(),
		connMutex: wsync.NewSemaphore(HANDSHAKE_SLOTS, HANDSHAKE_WAITERS),
		outbound:  make(chan atypes.Message, config.SendQueueSize),
	}

	router := mux.NewRouter()
	router.HandleFunc(config.BridgePath, bs.handleBridge)

	bs.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.BridgeHost, config.BridgePort),
		Handler:      router,
		ReadTimeout:  0,
		WriteTimeout: 0,
	}

	return bs
}

// Send queues one message for the main context. Returns false when the queue
// is full and the message was dropped.
func (bs *BridgeServer) Send(message atypes.Message) bool {
	select {
	case bs.outbound <- message:
		return true
	default:
		logrus.Errorf("bridge send queue full, dropping %s", message.Key)
		atypes.Stat(true, "bridge", "queue_full", string(message.Key))

		return false
	}
}

func (bs *BridgeServer) Connected() bool {
	_, ok := bs.connMap.Get(MAIN_CONTEXT)

	return ok
}

func (bs *BridgeServer) HealthCheck(timeout time.Duration) error {
	if !bs.connMutex.TryLock(timeout) {
		return errors.New("bridge handshake jammed")
	}
	bs.connMutex.Unlock()

	return nil
}

func (bs *BridgeServer) handleBridge(w http.ResponseWriter, r *http.Request) {
	if !bs.connMutex.TryLock(time.Second) {
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)

		return
	}
	defer bs.connMutex.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("bridge upgrade failed %+v", err)

		return
	}

	if !bs.connMap.Lock(MAIN_CONTEXT, conn) {
		logrus.Errorf("main context already connected, dropping %s", conn.RemoteAddr())
		atypes.Stat(true, "bridge", "duplicate", "")
		_ = conn.Close()

		return
	}
	atypes.Stat(false, "bridge", "connected", "")
	logrus.Infof("main context connected from %s", conn.RemoteAddr())

	done := make(chan struct{})
	go bs.writePump(conn, done)
	bs.readPump(conn)
	close(done)

	bs.connMap.Unlock(MAIN_CONTEXT)
	_ = conn.Close()
	atypes.Stat(false, "bridge", "disconnected", "")
}

func (bs *BridgeServer) readPump(conn *websocket.Conn) {
	defer func() {
		if atypes.Recover == false {
			return
		}
		if r := recover(); r != nil {
			logrus.Errorf("%s: %s", r, debug.Stack())
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(bs.config.PongTimeout.Duration))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(bs.config.PongTimeout.Duration))
	})

	for {
		var raw map[string]interface{}
		if err := conn.ReadJSON(&raw); err != nil {
			logrus.Debugf("bridge read finished %+v", err)

			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(bs.config.PongTimeout.Duration))

		message, err := decodeMessage(raw)
		if err != nil {
			logrus.Errorf("bad bridge message %+v", err)
			atypes.Stat(true, "bridge", "bad_message", "")

			continue
		}
		if bs.HandleMessage != nil {
			bs.HandleMessage(message)
		}
	}
}

func (bs *BridgeServer) writePump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(bs.config.PingInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case message := <-bs.outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(bs.config.WriteTimeout.Duration))
			if err := conn.WriteJSON(message); err != nil {
				logrus.Debugf("bridge write failed %+v", err)
				atypes.Stat(true, "bridge", "write_failed", string(message.Key))
				_ = conn.Close()

				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(bs.config.WriteTimeout.Duration))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()

				return
			}
		case <-done:
			return
		}
	}
}

func (bs *BridgeServer) Listen() error {
	go func() {
		err := bs.httpServer.ListenAndServe()
		if err != http.ErrServerClosed {
			logrus.Panicf("bridge server failed %+v", err)
		}
	}()

	return nil
}

func (bs *BridgeServer) Serve() error {
	return nil
}

func (bs *BridgeServer) Stop() error {
	// Hijacked websocket connections are invisible to httpServer.Close.
	if owner, ok := bs.connMap.Get(MAIN_CONTEXT); ok {
		if conn, ok := owner.(*websocket.Conn); ok {
			_ = conn.Close()
		}
	}

	return bs.httpServer.Close()
}

func decodeMessage(raw map[string]interface{}) (atypes.Message, error) {
	message := atypes.Message{}
	if err := mapstructure.WeakDecode(raw, &message); err != nil {
		return message, errors.Wrapf(err, "error parsing %+v", raw)
	}
	if message.Key == "" {
		return message, errors.Errorf("message without key %+v", raw)
	}

	return message, nil
}
