package service

import (
	"context"
	"errors"

	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
	"github.com/pmorev/giglance-backend/internal/repository/common"
)

// maxConflictRetries ограничивает число повторов операции при проигрыше
// оптимистичной блокировки.
const maxConflictRetries = 3

// withConflictRetry выполняет операцию целиком заново при конфликте версий.
// Повторяется только конфликт: любая другая ошибка возвращается сразу.
// Исчерпав попытки, возвращает CONCURRENT_MODIFICATION.
func withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn(ctx)
		if !errors.Is(err, common.ErrVersionConflict) {
			return err
		}
	}
	return apperror.Wrap(err, apperror.ErrCodeConcurrentModification, "сущность изменена параллельно, повторите запрос")
}
