package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict — транзакция проиграла конкурентной (serialization failure,
	// deadlock, lock not available). Временная ошибка: следующий тик повторит.
	ErrConflict = errors.New("transaction conflict")

	// ErrClaimLost — задача больше не принадлежит этому claim
	// (её освободил sweep, а возможно уже забрал другой процесс).
	ErrClaimLost = errors.New("claim lost")
)

// SQLSTATE коды, означающие проигрыш конкурентной транзакции.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// isConflict проверяет, является ли ошибка конфликтом транзакций.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	default:
		return false
	}
}
