// Package store реализует DataStore: версионированное хранилище записей
// с локальной политикой слияния, а также интерфейсы хранилищ, которые
// реализуют подпакеты boltdb, sqlite и memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/iudanet/peersync/internal/crdt"
	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/validation"
)

// Crypto операции CryptoService, которые нужны хранилищу
type Crypto interface {
	Sign(data []byte, keyID string) ([]byte, error)
	Verify(data, signature, publicKey []byte) bool
	Encrypt(plaintext []byte, keyID string) ([]byte, error)
	Decrypt(ciphertext []byte, keyID string) ([]byte, error)
	Hash(data []byte) string
}

// KeyResolver возвращает закрепленный публичный ключ автора записи
type KeyResolver interface {
	PublicKey(ctx context.Context, nodeID string) ([]byte, error)
}

// Options параметры DataStore
type Options struct {
	NodeID            string // id локального узла, автор локальных записей
	SigningKeyID      string // id ключа identity в CryptoService
	DataKeyID         string // id ключа данных аккаунта в CryptoService
	PublicKey         []byte // публичный ключ локального узла
	RetentionDays     int
	EncryptionEnabled bool
}

// PutRequest локальная запись
type PutRequest struct {
	ID      string
	Type    string
	Payload []byte
	Version uint64 // 0 - назначить следующую версию автоматически
}

// DiffResult результат сравнения локального манифеста с удаленным
type DiffResult struct {
	ToSend    []*models.SyncRecord
	ToRequest []string
}

// Rejection запись, отклоненная при применении
type Rejection struct {
	Err      error
	RecordID string
}

// ApplyResult результат применения удаленных записей
type ApplyResult struct {
	Applied   []string
	Conflicts []string
	Stale     []string
	Rejected  []Rejection
}

// PruneResult результат очистки по сроку хранения
type PruneResult struct {
	LogEntries   int
	AuditEntries int
}

// DataStore версионированное хранилище записей.
// Записи одного id сериализуются через отдельный мьютекс, разные id не блокируют друг друга.
type DataStore struct {
	records RecordStorage
	audit   AuditStorage
	crypto  Crypto
	keys    KeyResolver
	logger  *slog.Logger
	clock   clock.Clock

	locks sync.Map // map[id]*sync.Mutex

	waitCh  chan struct{}
	opts    Options
	pending atomic.Int64

	encryption atomic.Bool
	retention  atomic.Int64
	waitMu     sync.Mutex
}

// New создает DataStore. audit может быть nil.
func New(records RecordStorage, audit AuditStorage, cr Crypto, keys KeyResolver, opts Options, logger *slog.Logger, clk clock.Clock) *DataStore {
	if clk == nil {
		clk = clock.New()
	}
	s := &DataStore{
		records: records,
		audit:   audit,
		crypto:  cr,
		keys:    keys,
		opts:    opts,
		logger:  logger,
		clock:   clk,
		waitCh:  make(chan struct{}),
	}
	s.encryption.Store(opts.EncryptionEnabled)
	s.retention.Store(int64(opts.RetentionDays))
	return s
}

// NodeID возвращает id локального узла
func (s *DataStore) NodeID() string {
	return s.opts.NodeID
}

// SetEncryptionEnabled переключает шифрование payload для последующих записей
func (s *DataStore) SetEncryptionEnabled(enabled bool) {
	s.encryption.Store(enabled)
}

// SetRetentionDays задает срок хранения журнала записей и аудита
func (s *DataStore) SetRetentionDays(days int) {
	s.retention.Store(int64(days))
}

func (s *DataStore) lockFor(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Track учитывает n ожидающих записей (очередь входящих RECORD).
// Возвращенная функция снимает учет.
func (s *DataStore) Track(n int) func() {
	s.pending.Add(int64(n))
	var once sync.Once
	return func() {
		once.Do(func() { s.release(int64(n)) })
	}
}

func (s *DataStore) release(n int64) {
	s.pending.Add(-n)

	s.waitMu.Lock()
	close(s.waitCh)
	s.waitCh = make(chan struct{})
	s.waitMu.Unlock()
}

// Pending возвращает количество ожидающих записей
func (s *DataStore) Pending() int64 {
	return s.pending.Load()
}

// WaitBelow блокируется, пока очередь ожидающих записей не станет меньше threshold
func (s *DataStore) WaitBelow(ctx context.Context, threshold int64) error {
	if threshold <= 0 {
		return nil
	}
	for {
		s.waitMu.Lock()
		ch := s.waitCh
		s.waitMu.Unlock()

		if s.pending.Load() < threshold {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// current возвращает текущую запись или nil
func (s *DataStore) current(ctx context.Context, id string) (*models.SyncRecord, error) {
	record, err := s.records.GetRecord(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, syncerr.Storage("get record", err).WithRecord(id)
	}
	return record, nil
}

// seal хеширует, при необходимости шифрует и подписывает новую версию
func (s *DataStore) seal(record *models.SyncRecord, plaintext []byte) error {
	record.ContentHash = s.crypto.Hash(plaintext)
	record.NodeID = s.opts.NodeID
	record.Timestamp = s.clock.Now().UnixMilli()

	if s.encryption.Load() {
		ciphertext, err := s.crypto.Encrypt(plaintext, s.opts.DataKeyID)
		if err != nil {
			return fmt.Errorf("failed to encrypt payload: %w", err)
		}
		record.Payload = ciphertext
		record.Encrypted = true
	} else {
		record.Payload = append([]byte(nil), plaintext...)
		record.Encrypted = false
	}

	signature, err := s.crypto.Sign(record.SigningBytes(), s.opts.SigningKeyID)
	if err != nil {
		return fmt.Errorf("failed to sign record: %w", err)
	}
	record.Signature = signature
	return nil
}

// Put принимает локальную запись и назначает ей следующую версию.
// Явная версия должна быть строго больше сохраненной, иначе VersionConflict.
func (s *DataStore) Put(ctx context.Context, req PutRequest) (*models.SyncRecord, error) {
	if err := validation.ValidateRecordID(req.ID); err != nil {
		return nil, err
	}
	if err := validation.ValidateRecordType(req.Type); err != nil {
		return nil, err
	}

	mu := s.lockFor(req.ID)
	mu.Lock()
	defer mu.Unlock()

	release := s.Track(1)
	defer release()

	cur, err := s.current(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	var stored uint64
	if cur != nil {
		stored = cur.Version
	}

	version := stored + 1
	if req.Version != 0 {
		if req.Version <= stored {
			return nil, syncerr.Conflict("put", fmt.Errorf("%w: version %d is not greater than stored %d",
				syncerr.ErrVersionConflict, req.Version, stored)).WithRecord(req.ID)
		}
		version = req.Version
	}

	record := &models.SyncRecord{
		ID:      req.ID,
		Type:    req.Type,
		Version: version,
	}
	if err := s.seal(record, req.Payload); err != nil {
		return nil, syncerr.Crypto("put", err).WithRecord(req.ID)
	}

	if err := s.records.SaveRecord(ctx, record); err != nil {
		return nil, syncerr.Storage("put", err).WithRecord(req.ID)
	}

	s.logger.Debug("record written", "record_id", record.ID, "version", record.Version)
	return record.Clone(), nil
}

// Delete записывает tombstone следующей версией
func (s *DataStore) Delete(ctx context.Context, id string) (*models.SyncRecord, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	release := s.Track(1)
	defer release()

	cur, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil || cur.Deleted {
		return nil, ErrRecordNotFound
	}

	record := &models.SyncRecord{
		ID:      id,
		Type:    cur.Type,
		Version: cur.Version + 1,
		Deleted: true,
	}
	if err := s.seal(record, nil); err != nil {
		return nil, syncerr.Crypto("delete", err).WithRecord(id)
	}

	if err := s.records.SaveRecord(ctx, record); err != nil {
		return nil, syncerr.Storage("delete", err).WithRecord(id)
	}

	s.logger.Debug("record deleted", "record_id", id, "version", record.Version)
	return record.Clone(), nil
}

// Get возвращает текущую версию записи (включая tombstone)
func (s *DataStore) Get(ctx context.Context, id string) (*models.SyncRecord, bool, error) {
	record, err := s.current(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, nil
	}
	return record, true, nil
}

// List возвращает текущие записи, отсортированные по id
func (s *DataStore) List(ctx context.Context, includeDeleted bool) ([]*models.SyncRecord, error) {
	records, err := s.records.ListRecords(ctx)
	if err != nil {
		return nil, syncerr.Storage("list records", err)
	}

	result := make([]*models.SyncRecord, 0, len(records))
	for _, r := range records {
		if r.Deleted && !includeDeleted {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Open возвращает открытый payload записи и проверяет content hash
func (s *DataStore) Open(_ context.Context, record *models.SyncRecord) ([]byte, error) {
	plaintext := record.Payload
	if record.Encrypted {
		var err error
		plaintext, err = s.crypto.Decrypt(record.Payload, s.opts.DataKeyID)
		if err != nil {
			return nil, syncerr.Crypto("open record", err).WithRecord(record.ID)
		}
	}
	if s.crypto.Hash(plaintext) != record.ContentHash {
		return nil, syncerr.Crypto("open record", syncerr.ErrContentHashMismatch).WithRecord(record.ID)
	}
	return plaintext, nil
}

// WireRecord подготавливает запись к отправке: payload на проводе всегда зашифрован
func (s *DataStore) WireRecord(_ context.Context, record *models.SyncRecord) (*models.SyncRecord, error) {
	out := record.Clone()
	if out.Encrypted {
		return out, nil
	}
	ciphertext, err := s.crypto.Encrypt(record.Payload, s.opts.DataKeyID)
	if err != nil {
		return nil, syncerr.Crypto("encrypt for wire", err).WithRecord(record.ID)
	}
	out.Payload = ciphertext
	out.Encrypted = true
	return out, nil
}

// Manifest возвращает манифест локального состояния
func (s *DataStore) Manifest(ctx context.Context) (models.Manifest, error) {
	m, err := s.records.Manifest(ctx)
	if err != nil {
		return nil, syncerr.Storage("manifest", err)
	}
	return m, nil
}

// Digest возвращает dataDigest локального состояния
func (s *DataStore) Digest(ctx context.Context) (string, error) {
	m, err := s.Manifest(ctx)
	if err != nil {
		return "", err
	}
	return crypto.Digest(m), nil
}

// Diff сравнивает локальный манифест с удаленным.
// Результат отсортирован по id.
func (s *DataStore) Diff(ctx context.Context, remote models.Manifest) (*DiffResult, error) {
	local, err := s.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(local)+len(remote))
	for id := range local {
		ids[id] = struct{}{}
	}
	for id := range remote {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	result := &DiffResult{}
	for _, id := range sorted {
		var l, r *models.ManifestEntry
		if e, ok := local[id]; ok {
			l = &e
		}
		if e, ok := remote[id]; ok {
			r = &e
		}

		switch crdt.Decide(l, r) {
		case crdt.ActionSend:
			record, err := s.current(ctx, id)
			if err != nil {
				return nil, err
			}
			// запись могла измениться после снятия манифеста, отправляем актуальную
			if record != nil {
				result.ToSend = append(result.ToSend, record)
			}
		case crdt.ActionRequest:
			result.ToRequest = append(result.ToRequest, id)
		}
	}
	return result, nil
}

// verify проверяет подпись и целостность payload удаленной записи.
// Возвращает открытый payload.
func (s *DataStore) verify(ctx context.Context, record *models.SyncRecord) ([]byte, models.AuditReason, error) {
	var publicKey []byte
	if record.NodeID == s.opts.NodeID {
		publicKey = s.opts.PublicKey
	} else {
		key, err := s.keys.PublicKey(ctx, record.NodeID)
		if err != nil || len(key) == 0 {
			return nil, models.AuditRejectedSignature, fmt.Errorf("%w: %s", syncerr.ErrUnknownSigner, record.NodeID)
		}
		publicKey = key
	}

	if !s.crypto.Verify(record.SigningBytes(), record.Signature, publicKey) {
		return nil, models.AuditRejectedSignature, syncerr.ErrInvalidSignature
	}

	plaintext := record.Payload
	if record.Encrypted {
		var err error
		plaintext, err = s.crypto.Decrypt(record.Payload, s.opts.DataKeyID)
		if err != nil {
			return nil, models.AuditRejectedCrypto, err
		}
	}
	if s.crypto.Hash(plaintext) != record.ContentHash {
		return nil, models.AuditRejectedCrypto, syncerr.ErrContentHashMismatch
	}
	return plaintext, "", nil
}

// storageForm приводит payload к локальной политике шифрования
func (s *DataStore) storageForm(record *models.SyncRecord, plaintext []byte) (*models.SyncRecord, error) {
	out := record.Clone()
	switch {
	case s.encryption.Load() && !record.Encrypted:
		ciphertext, err := s.crypto.Encrypt(plaintext, s.opts.DataKeyID)
		if err != nil {
			return nil, err
		}
		out.Payload = ciphertext
		out.Encrypted = true
	case !s.encryption.Load() && record.Encrypted:
		out.Payload = append([]byte(nil), plaintext...)
		out.Encrypted = false
	}
	return out, nil
}

// ApplyRemote применяет записи, полученные от узла senderID.
// Запись с неверной подписью или поврежденным payload отклоняется и попадает в аудит,
// конфликты равных версий разрешаются детерминированно, проигравшая версия
// сохраняется только в журнале аудита. Повторное применение тех же записей ничего не меняет.
// Ошибка возвращается только при сбое хранилища; результат при этом частичный.
func (s *DataStore) ApplyRemote(ctx context.Context, senderID string, records []*models.SyncRecord) (*ApplyResult, error) {
	result := &ApplyResult{}

	release := s.Track(len(records))
	defer release()

	for _, record := range records {
		if err := s.applyOne(ctx, senderID, record, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *DataStore) applyOne(ctx context.Context, senderID string, record *models.SyncRecord, result *ApplyResult) error {
	log := s.logger.With("record_id", record.ID, "node_id", senderID)

	if err := validation.ValidateRecordID(record.ID); err != nil {
		result.Rejected = append(result.Rejected, Rejection{
			RecordID: record.ID,
			Err:      syncerr.Crypto("apply remote", err).WithNode(senderID),
		})
		log.Warn("remote record rejected", "error", err)
		return nil
	}

	plaintext, reason, err := s.verify(ctx, record)
	if err != nil {
		cerr := syncerr.Crypto("apply remote", err).WithNode(senderID).WithRecord(record.ID)
		result.Rejected = append(result.Rejected, Rejection{RecordID: record.ID, Err: cerr})
		log.Warn("remote record rejected", "writer", record.NodeID, "error", err)
		s.saveAudit(ctx, &models.AuditEntry{
			RecordID:     record.ID,
			LoserHash:    record.ContentHash,
			LoserNodeID:  record.NodeID,
			SenderNodeID: senderID,
			Version:      record.Version,
			Reason:       reason,
			Detail:       err.Error(),
		})
		return nil
	}

	stored, err := s.storageForm(record, plaintext)
	if err != nil {
		cerr := syncerr.Crypto("apply remote", err).WithNode(senderID).WithRecord(record.ID)
		result.Rejected = append(result.Rejected, Rejection{RecordID: record.ID, Err: cerr})
		return nil
	}

	mu := s.lockFor(record.ID)
	mu.Lock()
	defer mu.Unlock()

	cur, err := s.current(ctx, record.ID)
	if err != nil {
		return err
	}

	outcome := crdt.Resolve(cur, stored)
	if outcome.Replaces() {
		if err := s.records.SaveRecord(ctx, stored); err != nil {
			return syncerr.Storage("apply remote", err).WithRecord(record.ID)
		}
	}

	switch outcome {
	case crdt.OutcomeApply:
		result.Applied = append(result.Applied, record.ID)
	case crdt.OutcomeConflictWon:
		result.Applied = append(result.Applied, record.ID)
		result.Conflicts = append(result.Conflicts, record.ID)
		s.auditConflict(ctx, senderID, stored, cur)
	case crdt.OutcomeConflictLost:
		result.Conflicts = append(result.Conflicts, record.ID)
		s.auditConflict(ctx, senderID, cur, stored)
	case crdt.OutcomeStale:
		result.Stale = append(result.Stale, record.ID)
	}

	if outcome.IsConflict() {
		log.Info("version conflict resolved", "version", record.Version, "outcome", outcome.String())
	}
	return nil
}

func (s *DataStore) auditConflict(ctx context.Context, senderID string, winner, loser *models.SyncRecord) {
	s.saveAudit(ctx, &models.AuditEntry{
		RecordID:     loser.ID,
		WinnerHash:   winner.ContentHash,
		LoserHash:    loser.ContentHash,
		LoserNodeID:  loser.NodeID,
		SenderNodeID: senderID,
		Version:      loser.Version,
		Reason:       models.AuditConflict,
		LoserPayload: loser.Payload,
	})
}

// saveAudit сохраняет запись аудита; ошибка аудита не прерывает применение
func (s *DataStore) saveAudit(ctx context.Context, entry *models.AuditEntry) {
	if s.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.clock.Now().UTC()
	if err := s.audit.SaveAudit(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("failed to save audit entry", "record_id", entry.RecordID, "error", err)
	}
}

// Audit возвращает журнал аудита записи
func (s *DataStore) Audit(ctx context.Context, recordID string) ([]*models.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	entries, err := s.audit.ListAudit(ctx, recordID)
	if err != nil {
		return nil, syncerr.Storage("list audit", err)
	}
	return entries, nil
}

// Prune удаляет записи журнала и аудита старше срока хранения.
// Текущее состояние записей и tombstone не затрагиваются.
func (s *DataStore) Prune(ctx context.Context, now time.Time) (*PruneResult, error) {
	days := s.retention.Load()
	result := &PruneResult{}
	if days <= 0 {
		return result, nil
	}
	before := now.Add(-time.Duration(days) * 24 * time.Hour)

	n, err := s.records.PruneLog(ctx, before)
	if err != nil {
		return nil, syncerr.Storage("prune record log", err)
	}
	result.LogEntries = n

	if s.audit != nil {
		n, err = s.audit.PruneAudit(ctx, before)
		if err != nil {
			return nil, syncerr.Storage("prune audit log", err)
		}
		result.AuditEntries = n
	}

	if result.LogEntries > 0 || result.AuditEntries > 0 {
		s.logger.Info("retention pruning finished",
			"log_entries", result.LogEntries, "audit_entries", result.AuditEntries)
	}
	return result, nil
}

// LogSize возвращает размер журнала записей
func (s *DataStore) LogSize(ctx context.Context) (int, error) {
	n, err := s.records.LogSize(ctx)
	if err != nil {
		return 0, syncerr.Storage("log size", err)
	}
	return n, nil
}
