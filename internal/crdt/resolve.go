// Package crdt содержит детерминированную политику слияния версий записей.
//
// Порядок версий определяется только номером версии и content hash:
// большая версия выигрывает, при равных версиях выигрывает лексикографически
// меньший хеш. Время узлов не используется.
package crdt

import "github.com/iudanet/peersync/internal/models"

// Outcome результат сравнения входящей записи с локальной
type Outcome int

const (
	// OutcomeApply входящая запись новее локальной (или локальной нет)
	OutcomeApply Outcome = iota
	// OutcomeSame та же версия с тем же содержимым, ничего делать не нужно
	OutcomeSame
	// OutcomeStale локальная версия строго больше
	OutcomeStale
	// OutcomeConflictWon равные версии, разное содержимое, входящая выигрывает
	OutcomeConflictWon
	// OutcomeConflictLost равные версии, разное содержимое, локальная выигрывает
	OutcomeConflictLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApply:
		return "apply"
	case OutcomeSame:
		return "same"
	case OutcomeStale:
		return "stale"
	case OutcomeConflictWon:
		return "conflict-won"
	case OutcomeConflictLost:
		return "conflict-lost"
	default:
		return "unknown"
	}
}

// Replaces сообщает, нужно ли заменить локальную запись входящей
func (o Outcome) Replaces() bool {
	return o == OutcomeApply || o == OutcomeConflictWon
}

// IsConflict сообщает, что версии совпали при разном содержимом
func (o Outcome) IsConflict() bool {
	return o == OutcomeConflictWon || o == OutcomeConflictLost
}

// Resolve сравнивает входящую запись с локальной. local может быть nil.
func Resolve(local, incoming *models.SyncRecord) Outcome {
	if local == nil {
		return OutcomeApply
	}
	return compare(local.ManifestEntry(), incoming.ManifestEntry())
}

func compare(local, incoming models.ManifestEntry) Outcome {
	switch {
	case incoming.Version > local.Version:
		return OutcomeApply
	case incoming.Version < local.Version:
		return OutcomeStale
	case incoming.ContentHash == local.ContentHash:
		return OutcomeSame
	case incoming.ContentHash < local.ContentHash:
		return OutcomeConflictWon
	default:
		return OutcomeConflictLost
	}
}

// Action действие для одного id при сравнении манифестов
type Action int

const (
	// ActionNone обе стороны уже согласованы
	ActionNone Action = iota
	// ActionSend локальная версия выигрывает, ее нужно отправить
	ActionSend
	// ActionRequest удаленная версия выигрывает, ее нужно запросить
	ActionRequest
)

// Decide определяет действие для id по локальной и удаленной записи манифеста.
// Отсутствующая сторона передается как nil.
func Decide(local, remote *models.ManifestEntry) Action {
	switch {
	case local == nil && remote == nil:
		return ActionNone
	case local == nil:
		return ActionRequest
	case remote == nil:
		return ActionSend
	}

	switch compare(*local, *remote) {
	case OutcomeApply, OutcomeConflictWon:
		return ActionRequest
	case OutcomeStale, OutcomeConflictLost:
		return ActionSend
	default:
		return ActionNone
	}
}
