package handlers

import (
	"context"
	"time"
)

// Pacer выдерживает паузу между сообщением о запуске колеса и результатом.
type Pacer interface {
	Pause(ctx context.Context) error
}

// DelayPacer ждет фиксированное время. Блокируется только горутина текущего клиента.
type DelayPacer struct {
	Delay time.Duration
}

func (p DelayPacer) Pause(ctx context.Context) error {
	if p.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
