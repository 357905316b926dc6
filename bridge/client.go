package bridge

import (
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
)

// BridgeClient is the main-context side of the bridge. It keeps one
// connection to the worker alive, reconnecting after ReconnectDelay, and
// forwards identity headers it observes on outgoing platform requests.
type BridgeClient struct {
	config   BridgeConfig
	url      string
	outbound chan atypes.Message

	m        sync.Mutex
	lastSent map[atypes.MessageKey]string

	closed    chan struct{}
	closeOnce sync.Once

	HandleMessage func(message atypes.Message)
	OnConnect     func()
}

func NewBridgeClient(config BridgeConfig, bridgeUrl string) *BridgeClient {
	return &BridgeClient{
		config:   config,
		url:      bridgeUrl,
		outbound: make(chan atypes.Message, config.SendQueueSize),
		lastSent: make(map[atypes.MessageKey]string),
		closed:   make(chan struct{}),
	}
}

func (bc *BridgeClient) Run() {
	go bc.connectLoop()
}

func (bc *BridgeClient) Close() {
	bc.closeOnce.Do(func() {
		close(bc.closed)
	})
}

// Send queues one message for the worker. Returns false when the queue is
// full and the message was dropped.
func (bc *BridgeClient) Send(message atypes.Message) bool {
	select {
	case bc.outbound <- message:
		return true
	default:
		logrus.Errorf("bridge client queue full, dropping %s", message.Key)
		atypes.Stat(true, "bridge_client", "queue_full", string(message.Key))

		return false
	}
}

// ObserveRequest lifts identity headers off an outgoing platform request and
// forwards each one that changed since the last observation.
func (bc *BridgeClient) ObserveRequest(request *http.Request) {
	bc.forwardHeader(request, "Client-Id", atypes.UPDATE_CLIENT_ID)
	bc.forwardHeader(request, "Client-Version", atypes.UPDATE_CLIENT_VERSION)
	bc.forwardHeader(request, "Client-Session-Id", atypes.UPDATE_CLIENT_SESSION)
	bc.forwardHeader(request, "Client-Integrity", atypes.UPDATE_CLIENT_INTEGRITY_HEADER)
	bc.forwardHeader(request, "X-Device-Id", atypes.UPDATE_DEVICE_ID)
	bc.forwardHeader(request, "Authorization", atypes.UPDATE_AUTHORIZATION_HEADER)
}

func (bc *BridgeClient) forwardHeader(request *http.Request, header string, key atypes.MessageKey) {
	value := request.Header.Get(header)
	if value == "" {
		return
	}

	bc.m.Lock()
	if bc.lastSent[key] == value {
		bc.m.Unlock()

		return
	}
	bc.lastSent[key] = value
	bc.m.Unlock()

	bc.Send(atypes.Message{Key: key, Value: value})
}

func (bc *BridgeClient) connectLoop() {
	defer func() {
		if atypes.Recover == false {
			return
		}
		if r := recover(); r != nil {
			logrus.Errorf("%s: %s", r, debug.Stack())
		}
	}()

	for {
		select {
		case <-bc.closed:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(bc.url, nil)
		if err != nil {
			logrus.Debugf("bridge dial failed %+v", err)
			select {
			case <-bc.closed:
				return
			case <-time.After(bc.config.ReconnectDelay.Duration):
			}

			continue
		}

		atypes.Stat(false, "bridge_client", "connected", "")
		logrus.Infof("connected to worker at %s", bc.url)
		if bc.OnConnect != nil {
			bc.OnConnect()
		}
		bc.serveConn(conn)
	}
}

func (bc *BridgeClient) serveConn(conn *websocket.Conn) {
	done := make(chan struct{})
	go bc.writePump(conn, done)
	bc.readPump(conn)
	close(done)
	_ = conn.Close()
}

func (bc *BridgeClient) readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(bc.config.PongTimeout.Duration))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(bc.config.PongTimeout.Duration))
	})

	for {
		var raw map[string]interface{}
		if err := conn.ReadJSON(&raw); err != nil {
			logrus.Debugf("bridge client read finished %+v", err)

			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(bc.config.PongTimeout.Duration))

		message, err := decodeMessage(raw)
		if err != nil {
			logrus.Errorf("bad bridge message %+v", err)
			atypes.Stat(true, "bridge_client", "bad_message", "")

			continue
		}
		if bc.HandleMessage != nil {
			bc.HandleMessage(message)
		}
	}
}

func (bc *BridgeClient) writePump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(bc.config.PingInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case message := <-bc.outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(bc.config.WriteTimeout.Duration))
			if err := conn.WriteJSON(message); err != nil {
				logrus.Debugf("bridge client write failed %+v", err)
				atypes.Stat(true, "bridge_client", "write_failed", string(message.Key))
				_ = conn.Close()

				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(bc.config.WriteTimeout.Duration))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()

				return
			}
		case <-bc.closed:
			_ = conn.Close()

			return
		case <-done:
			return
		}
	}
}
