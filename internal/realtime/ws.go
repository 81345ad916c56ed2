package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// SubscribeAuthorizer decides whether the holder of token may watch kolID.
type SubscribeAuthorizer func(ctx context.Context, token string, kolID int64) error

// ServeWebsocket runs one websocket client until it disconnects or ctx
// ends. Every subscription of the client is dropped on return.
func (b *Broadcaster) ServeWebsocket(ctx context.Context, ws *websocket.Conn, authorize SubscribeAuthorizer) {
	conn := b.hub.Connect()
	defer conn.Close()
	defer ws.Close()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		b.readLoop(ctx, ws, conn, authorize)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		case <-readerDone:
			return
		case msg := <-conn.Messages():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (b *Broadcaster) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn, authorize SubscribeAuthorizer) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		var in domain.ClientMessage
		if err := json.Unmarshal(data, &in); err != nil {
			conn.Send(b.errorMessage(0, domain.ErrUnknownMessage))
			continue
		}
		b.handleClientMessage(ctx, conn, in, authorize)
	}
}

func (b *Broadcaster) handleClientMessage(ctx context.Context, conn *Conn, in domain.ClientMessage, authorize SubscribeAuthorizer) {
	kolID := int64(in.KolID)
	switch in.Type {
	case domain.ClientSubscribe:
		if kolID <= 0 {
			conn.Send(b.errorMessage(kolID, domain.ErrInvalidKolID))
			return
		}
		if authorize == nil {
			conn.Send(b.errorMessage(kolID, domain.ErrSubscribeDenied))
			return
		}
		if err := authorize(ctx, in.Token, kolID); err != nil {
			conn.Send(b.errorMessage(kolID, domain.ErrSubscribeDenied))
			return
		}
		if err := conn.Subscribe(kolID); err != nil {
			conn.Send(b.errorMessage(kolID, err))
			return
		}
		computeCtx, cancel := context.WithTimeout(ctx, computeTimeout)
		defer cancel()
		msg := b.Snapshot(computeCtx, kolID)
		conn.Send(msg)
		if msg.Type == domain.MessageStatsUpdate {
			b.obsMetrics.RecordRealtimePush(computeCtx, msg.Type, 1)
		}
	case domain.ClientUnsubscribe:
		conn.Unsubscribe(kolID)
		id := domain.KolID(kolID)
		conn.Send(domain.Message{Type: domain.MessageUnsubscribed, KolID: &id, Timestamp: b.now().UTC()})
	default:
		conn.Send(b.errorMessage(kolID, domain.ErrUnknownMessage))
	}
}

func (b *Broadcaster) errorMessage(kolID int64, err error) domain.Message {
	msg := domain.Message{
		Type:      domain.MessageStatsError,
		Error:     err.Error(),
		Timestamp: b.now().UTC(),
	}
	if kolID > 0 {
		id := domain.KolID(kolID)
		msg.KolID = &id
	}
	return msg
}
