package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pmorev/giglance-backend/internal/goroutine"
)

// NegotiationSweeper периодически помечает просроченные предложения
// superseded. Просрочка не финансовая операция, поэтому сбой одного прохода
// лишь логируется.
type NegotiationSweeper struct {
	svc      *NegotiationService
	ttl      time.Duration
	interval time.Duration
}

// NewNegotiationSweeper создаёт фоновый процесс очистки предложений.
func NewNegotiationSweeper(svc *NegotiationService, ttl, interval time.Duration) *NegotiationSweeper {
	return &NegotiationSweeper{svc: svc, ttl: ttl, interval: interval}
}

// Run запускает цикл очистки до отмены контекста.
func (s *NegotiationSweeper) Run(ctx context.Context) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := s.svc.ExpireStale(ctx, s.ttl)
				if err != nil {
					logrus.WithError(err).Error("очистка просроченных предложений не удалась")
					continue
				}
				if expired > 0 {
					logrus.WithField("count", expired).Info("просроченные предложения помечены superseded")
				}
			}
		}
	})
}
