package engine

import (
	"context"

	"github.com/iudanet/peersync/internal/conn"
	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/metrics"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/pkg/api"
)

// responderQueue очередь входящих запросов одного узла
const responderQueue = 256

type job struct {
	frame   *protocol.Frame
	release func() // снимает учет ожидающей записи, nil для не-RECORD
}

// responder обрабатывает запросы узла по порядку поступления
type responder struct {
	peer *conn.Peer
	jobs chan job
}

// respond ставит кадр в очередь ответной стороны узла.
// Если очередь заполнена, горутина чтения соединения ждет.
func (e *Engine) respond(ctx context.Context, peer *conn.Peer, f *protocol.Frame, release func()) {
	r := e.responderFor(peer)
	metrics.PendingWrites.Set(float64(e.store.Pending()))

	select {
	case r.jobs <- job{frame: f, release: release}:
	case <-peer.Done():
		if release != nil {
			release()
		}
	case <-ctx.Done():
		if release != nil {
			release()
		}
	}
}

func (e *Engine) responderFor(peer *conn.Peer) *responder {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.responders[peer.NodeID()]; ok && r.peer == peer {
		return r
	}
	r := &responder{peer: peer, jobs: make(chan job, responderQueue)}
	e.responders[peer.NodeID()] = r

	e.wg.Add(1)
	go e.serveResponder(r)
	return r
}

func (e *Engine) serveResponder(r *responder) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		if e.responders[r.peer.NodeID()] == r {
			delete(e.responders, r.peer.NodeID())
		}
		e.mu.Unlock()
		// соединение закрыто: снимаем учет с необработанных записей
		for {
			select {
			case j := <-r.jobs:
				if j.release != nil {
					j.release()
				}
			default:
				return
			}
		}
	}()

	for {
		select {
		case j := <-r.jobs:
			e.handleJob(r.peer, j)
		case <-r.peer.Done():
			return
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) handleJob(peer *conn.Peer, j job) {
	if j.release != nil {
		defer func() {
			j.release()
			metrics.PendingWrites.Set(float64(e.store.Pending()))
		}()
	}

	log := e.logger.With("node_id", peer.NodeID())
	var err error
	switch j.frame.Type {
	case protocol.MsgManifest:
		err = e.answerManifest(peer, j.frame)
	case protocol.MsgRequest:
		err = e.answerRequest(peer, j.frame)
	case protocol.MsgRecord:
		err = e.answerRecord(peer, j.frame)
	}
	if err != nil {
		log.Warn("failed to answer sync request", "type", j.frame.Type.String(), "error", err)
	}
}

func (e *Engine) answerManifest(peer *conn.Peer, f *protocol.Frame) error {
	var req api.Manifest
	if err := f.Decode(&req); err != nil {
		return err
	}
	local, err := e.store.Manifest(e.ctx)
	if err != nil {
		return err
	}
	return peer.Send(e.ctx, protocol.MsgManifest, api.Manifest{
		SessionID: req.SessionID,
		Digest:    crypto.Digest(local),
		Entries:   protocol.ToWireManifest(local),
		Seq:       req.Seq,
		Reply:     true,
	})
}

// answerRequest отправляет запрошенные записи потоком и завершает ACK(done).
// Отсутствующие id пропускаются.
func (e *Engine) answerRequest(peer *conn.Peer, f *protocol.Frame) error {
	var req api.Request
	if err := f.Decode(&req); err != nil {
		return err
	}

	sent := 0
	for _, id := range req.IDs {
		record, ok, err := e.store.Get(e.ctx, id)
		if err != nil {
			e.logger.Warn("failed to read requested record", "record_id", id, "error", err)
			continue
		}
		if !ok {
			continue
		}
		wire, err := e.store.WireRecord(e.ctx, record)
		if err != nil {
			e.logger.Warn("failed to prepare record for wire", "record_id", id, "error", err)
			continue
		}
		msg := api.RecordMessage{SessionID: req.SessionID, Seq: req.Seq, Record: protocol.ToWireRecord(wire)}
		if err := peer.Send(e.ctx, protocol.MsgRecord, msg); err != nil {
			return err
		}
		sent++
		metrics.RecordsTotal.WithLabelValues("sent", "streamed").Inc()
	}

	return peer.Send(e.ctx, protocol.MsgAck, api.Ack{SessionID: req.SessionID, Seq: req.Seq, Count: sent, Done: true})
}

// answerRecord применяет присланную запись и подтверждает ее.
// При сбое хранилища ACK не отправляется, отправитель повторит запись.
func (e *Engine) answerRecord(peer *conn.Peer, f *protocol.Frame) error {
	var msg api.RecordMessage
	if err := f.Decode(&msg); err != nil {
		return err
	}
	record := protocol.FromWireRecord(msg.Record)

	res, err := e.store.ApplyRemote(e.ctx, peer.NodeID(), []*models.SyncRecord{record})
	if err != nil {
		metrics.RecordsTotal.WithLabelValues("received", "failed").Inc()
		return err
	}
	recordMetrics("received", res)

	ack := api.Ack{SessionID: msg.SessionID, RecordID: record.ID, Seq: msg.Seq, Status: api.AckSame}
	switch {
	case len(res.Rejected) > 0:
		ack.Status = api.AckRejected
		ack.Error = res.Rejected[0].Err.Error()
	case len(res.Conflicts) > 0:
		ack.Status = api.AckConflict
	case len(res.Applied) > 0:
		ack.Status = api.AckApplied
	case len(res.Stale) > 0:
		ack.Status = api.AckStale
	}
	return peer.Send(e.ctx, protocol.MsgAck, ack)
}
