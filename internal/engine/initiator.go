package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/peersync/internal/conn"
	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/metrics"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/pkg/api"
)

const (
	// maxPasses сколько раз выполнять diff и передачу, прежде чем сообщить о расхождении digest
	maxPasses = 2
	// requestBatch максимум id в одном REQUEST
	requestBatch = 256
)

// errConnectionLost соединение закрылось посреди сессии
var errConnectionLost = errors.New("connection lost")

// run исполняет сессию инициатора от подключения до терминального состояния
func (e *Engine) run(s *session) {
	defer e.wg.Done()

	log := e.logger.With("session_id", s.id(), "node_id", s.nodeID())
	err := e.execute(s)

	state := models.SessionCompleted
	switch {
	case s.cancelled.Load():
		state = models.SessionCancelled
	case err != nil:
		state = models.SessionFailed
		s.addError(e.clock.Now(), "", err)
	}

	final := s.finish(state, e.clock.Now())
	e.complete(s, final)

	duration := final.EndTime.Sub(final.StartTime)
	metrics.SessionsTotal.WithLabelValues(string(state)).Inc()
	metrics.SessionDuration.Observe(duration.Seconds())

	if err != nil && state == models.SessionFailed {
		log.Warn("sync session failed", "error", err, "records", final.RecordsTransferred)
	} else {
		log.Info("sync session finished",
			"state", state,
			"records", final.RecordsTransferred,
			"bytes", final.BytesTransferred,
			"errors", len(final.Errors),
			"warnings", final.Warnings,
		)
	}
	e.publish(EventSessionFinished, final)
	s.markDone()
}

// complete сохраняет итог сессии и освобождает узел для следующей сессии
func (e *Engine) complete(s *session, final *models.SyncSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), 5*time.Second)
	defer cancel()

	persisted := false
	if e.sessions != nil {
		if err := e.sessions.SaveSession(ctx, final); err != nil {
			e.logger.Error("failed to save session", "session_id", final.ID, "error", err)
		} else {
			persisted = true
		}
	}
	if e.meta != nil && final.State == models.SessionCompleted {
		if err := e.meta.SaveLastSync(ctx, final.NodeID, final.EndTime); err != nil {
			e.logger.Warn("failed to save last sync time", "node_id", final.NodeID, "error", err)
		}
	}

	e.mu.Lock()
	if e.byNode[s.nodeID()] == s {
		delete(e.byNode, s.nodeID())
	}
	delete(e.active, s.id())
	if !persisted {
		e.recent = append(e.recent, final)
		if len(e.recent) > recentLimit {
			e.recent = e.recent[len(e.recent)-recentLimit:]
		}
	}
	e.mu.Unlock()
}

func (e *Engine) execute(s *session) error {
	if err := e.sem.Acquire(s.ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire session slot: %w", err)
	}
	defer e.sem.Release(1)

	peer, err := e.conns.Connect(s.ctx, s.nodeID())
	if err != nil {
		return err
	}

	s.setState(models.SessionSyncing)
	e.publish(EventProgress, s.snapshot())
	e.conns.MarkSyncing(s.nodeID(), true)
	defer e.conns.MarkSyncing(s.nodeID(), false)

	for pass := 0; ; pass++ {
		remote, remoteDigest, err := e.exchangeManifest(s, peer)
		if err != nil {
			return err
		}
		local, err := e.store.Digest(s.ctx)
		if err != nil {
			return err
		}
		if local == remoteDigest {
			return nil
		}
		if pass == maxPasses {
			s.addWarning(models.WarningDigestMismatch)
			e.logger.Warn("data digest still differs after sync", "session_id", s.id(), "node_id", s.nodeID())
			return nil
		}

		diff, err := e.store.Diff(s.ctx, remote)
		if err != nil {
			return err
		}
		e.logger.Debug("manifest diff",
			"session_id", s.id(), "pass", pass, "to_send", len(diff.ToSend), "to_request", len(diff.ToRequest))

		if err := e.pull(s, peer, diff.ToRequest); err != nil {
			return err
		}
		if err := e.push(s, peer, diff.ToSend); err != nil {
			return err
		}
	}
}

// exchangeManifest отправляет свой манифест и ждет ответный.
// Таймаут ответа повторяется с backoff; кадры прошлых попыток пропускаются.
func (e *Engine) exchangeManifest(s *session, peer *conn.Peer) (models.Manifest, string, error) {
	local, err := e.store.Manifest(s.ctx)
	if err != nil {
		return nil, "", err
	}
	msg := api.Manifest{
		SessionID: s.id(),
		Digest:    crypto.Digest(local),
		Entries:   protocol.ToWireManifest(local),
	}

	var reply api.Manifest
	err = retry.Do(s.ctx, e.backoff(s), func(context.Context) error {
		msg.Seq = s.seq.Add(1)
		if err := peer.Send(s.ctx, protocol.MsgManifest, msg); err != nil {
			return retryable(err, peer)
		}
		for {
			f, err := e.await(s, peer)
			if err != nil {
				return retryable(err, peer)
			}
			if f.Type != protocol.MsgManifest {
				e.logger.Debug("stale frame skipped", "session_id", s.id(), "type", f.Type.String())
				continue
			}
			var got api.Manifest
			if err := f.Decode(&got); err != nil {
				return err
			}
			if got.Seq == msg.Seq {
				reply = got
				return nil
			}
		}
	})
	if err != nil {
		return nil, "", err
	}
	return protocol.FromWireManifest(reply.Entries), reply.Digest, nil
}

func (e *Engine) backoff(s *session) retry.Backoff {
	return retry.WithMaxRetries(s.cfg.RecordRetries, retry.NewExponential(s.cfg.RetryBase))
}

// retryable помечает таймаут ответа и транзиентную ошибку отправки для повтора.
// Закрытое соединение не повторяется.
func retryable(err error, peer *conn.Peer) error {
	if peer.Closed() {
		return err
	}
	if errors.Is(err, ErrAckTimeout) || syncerr.IsRetryable(err) {
		return retry.RetryableError(err)
	}
	return err
}

// await ждет следующий кадр сессии не дольше AckTimeout
func (e *Engine) await(s *session, peer *conn.Peer) (*protocol.Frame, error) {
	timer := e.clock.Timer(s.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case f := <-s.inbox:
		return f, nil
	case <-timer.C:
		return nil, syncerr.Network("await reply", ErrAckTimeout).WithNode(s.nodeID())
	case <-peer.Done():
		return nil, syncerr.Network("await reply", errConnectionLost).WithNode(s.nodeID())
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

// pull запрашивает записи, которые у узла новее, пачками по requestBatch
func (e *Engine) pull(s *session, peer *conn.Peer, ids []string) error {
	for start := 0; start < len(ids); start += requestBatch {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		if err := e.pullBatch(s, peer, ids[start:min(start+requestBatch, len(ids))]); err != nil {
			return err
		}
	}
	return nil
}

// pullBatch запрашивает пачку id. Ответные RECORD применяются по мере поступления,
// поток завершается ACK(done) с тем же Seq. При таймауте повторно запрашиваются
// только еще не полученные id; после исчерпания повторов они попадают в Errors,
// а сессия продолжается.
func (e *Engine) pullBatch(s *session, peer *conn.Peer, batch []string) error {
	waiting := make(map[string]struct{}, len(batch))
	for _, id := range batch {
		waiting[id] = struct{}{}
	}

	err := retry.Do(s.ctx, e.backoff(s), func(context.Context) error {
		want := make([]string, 0, len(waiting))
		for _, id := range batch {
			if _, ok := waiting[id]; ok {
				want = append(want, id)
			}
		}
		if len(want) == 0 {
			return nil
		}

		seq := s.seq.Add(1)
		if err := peer.Send(s.ctx, protocol.MsgRequest, api.Request{SessionID: s.id(), IDs: want, Seq: seq}); err != nil {
			return retryable(err, peer)
		}

		for {
			f, err := e.await(s, peer)
			if err != nil {
				return retryable(err, peer)
			}
			switch f.Type {
			case protocol.MsgRecord:
				var msg api.RecordMessage
				if err := f.Decode(&msg); err != nil {
					return err
				}
				// запись прошлой попытки тоже годится, повторная отбрасывается
				if _, ok := waiting[msg.Record.ID]; !ok {
					continue
				}
				delete(waiting, msg.Record.ID)
				e.applyPulled(s, protocol.FromWireRecord(msg.Record))
			case protocol.MsgAck:
				var ack api.Ack
				if err := f.Decode(&ack); err != nil {
					return err
				}
				if ack.Seq == seq {
					return nil
				}
			default:
				e.logger.Debug("stale frame skipped", "session_id", s.id(), "type", f.Type.String())
			}
		}
	})
	if err == nil {
		return nil
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if peer.Closed() {
		return syncerr.Network("pull records", errConnectionLost).WithNode(s.nodeID())
	}

	e.logger.Warn("records not received after retries", "session_id", s.id(), "count", len(waiting), "error", err)
	for _, id := range batch {
		if _, ok := waiting[id]; ok {
			s.addError(e.clock.Now(), id, err)
			metrics.RecordsTotal.WithLabelValues("received", "failed").Inc()
		}
	}
	return nil
}

func (e *Engine) applyPulled(s *session, record *models.SyncRecord) {
	// начатое применение завершается даже после Cancel
	ctx := context.WithoutCancel(s.ctx)
	res, err := e.store.ApplyRemote(ctx, s.nodeID(), []*models.SyncRecord{record})
	if err != nil {
		s.addError(e.clock.Now(), record.ID, err)
		metrics.RecordsTotal.WithLabelValues("received", "failed").Inc()
		return
	}
	recordMetrics("received", res)
	for _, r := range res.Rejected {
		s.addError(e.clock.Now(), r.RecordID, r.Err)
	}
	if len(res.Rejected) == 0 {
		s.progress(record.Size())
		e.publish(EventProgress, s.snapshot())
	}
}

// push отправляет записи, которые у узла старее, окном SendWindow.
// Ошибка отдельной записи попадает в Errors, сессия продолжается.
func (e *Engine) push(s *session, peer *conn.Peer, records []*models.SyncRecord) error {
	if len(records) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.cfg.SendWindow)

	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		if peer.Closed() {
			break
		}
		if err := e.store.WaitBelow(ctx, s.cfg.BackpressureThreshold); err != nil {
			break
		}
		g.Go(func() error {
			e.pushRecord(ctx, s, peer, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if peer.Closed() {
		return syncerr.Network("push records", errConnectionLost).WithNode(s.nodeID())
	}
	return s.ctx.Err()
}

// pushRecord отправляет запись и ждет ACK, повторяя при таймауте
func (e *Engine) pushRecord(ctx context.Context, s *session, peer *conn.Peer, record *models.SyncRecord) {
	wire, err := e.store.WireRecord(ctx, record)
	if err != nil {
		s.addError(e.clock.Now(), record.ID, err)
		metrics.RecordsTotal.WithLabelValues("sent", "failed").Inc()
		return
	}

	msg := api.RecordMessage{SessionID: s.id(), Record: protocol.ToWireRecord(wire)}

	var ack api.Ack
	err = retry.Do(ctx, e.backoff(s), func(ctx context.Context) error {
		msg.Seq = s.seq.Add(1)
		ch := s.expectAck(msg.Seq)
		defer s.dropAck(msg.Seq)

		if err := peer.Send(ctx, protocol.MsgRecord, msg); err != nil {
			if syncerr.IsRetryable(err) && !peer.Closed() {
				return retry.RetryableError(err)
			}
			return err
		}

		timer := e.clock.Timer(s.cfg.AckTimeout)
		defer timer.Stop()

		select {
		case ack = <-ch:
			return nil
		case <-timer.C:
			e.logger.Debug("record ack timeout", "session_id", s.id(), "record_id", record.ID, "seq", msg.Seq)
			return retry.RetryableError(syncerr.Network("push record", ErrAckTimeout).WithRecord(record.ID))
		case <-peer.Done():
			return syncerr.Network("push record", errConnectionLost).WithRecord(record.ID)
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		// отмена сессии не ошибка записи
		if ctx.Err() == nil {
			s.addError(e.clock.Now(), record.ID, err)
			metrics.RecordsTotal.WithLabelValues("sent", "failed").Inc()
		}
		return
	}

	metrics.RecordsTotal.WithLabelValues("sent", ack.Status).Inc()
	if ack.Status == api.AckRejected {
		s.addError(e.clock.Now(), record.ID, syncerr.Crypto("push record", errors.New(ack.Error)).WithRecord(record.ID))
		return
	}
	s.progress(wire.Size())
	e.publish(EventProgress, s.snapshot())
}
