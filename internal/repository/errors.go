package repository

import "errors"

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrStaleVersion версия снимка устарела, запись изменена конкурентно
	ErrStaleVersion = errors.New("stale record version")
)
