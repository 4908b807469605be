// Package hook описывает точки расширения смены и вызывает зарегистрированные обработчики по порядку.
package hook

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/model"
)

// MovementHook вызывается после фиксации движения денежных средств.
type MovementHook interface {
	OnMovementRecorded(ctx context.Context, rc model.RequestContext, movement model.CashMovement) error
}

// CloseHook вызывается перед расчетом закрытия и может изменить payload.
// Флаг isProcessed хуку недоступен.
type CloseHook interface {
	OnBeforeClose(ctx context.Context, terminal model.Terminal, cashup model.Cashup, payload *model.ClosePayload) error
}

// GroupingHook получает результат группировки движений.
type GroupingHook interface {
	OnAfterGrouping(ctx context.Context, cashup model.Cashup, result *model.OrderGroupResult) error
}

// ClosedHook вызывается после фиксации закрытия смены.
type ClosedHook interface {
	OnCashupClosed(ctx context.Context, rc model.RequestContext, cashup model.Cashup, outcome model.CloseOutcome) error
}

// Pipeline хранит обработчики в порядке регистрации. Первая ошибка прерывает цепочку,
// ошибка пишется в лог и возвращается вызывающему, который решает, что с ней делать.
type Pipeline struct {
	movement []MovementHook
	close    []CloseHook
	grouping []GroupingHook
	closed   []ClosedHook
	zaplog   *zap.Logger
}

// NewPipeline регистрирует hooks. Один обработчик может реализовывать несколько интерфейсов.
func NewPipeline(zaplog *zap.Logger, hooks ...any) *Pipeline {
	p := &Pipeline{zaplog: zaplog}
	for _, h := range hooks {
		p.Register(h)
	}
	return p
}

func (p *Pipeline) Register(h any) {
	registered := false
	if m, ok := h.(MovementHook); ok {
		p.movement = append(p.movement, m)
		registered = true
	}
	if c, ok := h.(CloseHook); ok {
		p.close = append(p.close, c)
		registered = true
	}
	if g, ok := h.(GroupingHook); ok {
		p.grouping = append(p.grouping, g)
		registered = true
	}
	if c, ok := h.(ClosedHook); ok {
		p.closed = append(p.closed, c)
		registered = true
	}
	if !registered {
		p.zaplog.Warn("hook implements no known interface", zap.String("hook", fmt.Sprintf("%T", h)))
	}
}

func (p *Pipeline) MovementRecorded(ctx context.Context, rc model.RequestContext, movement model.CashMovement) error {
	for _, h := range p.movement {
		if err := p.call("OnMovementRecorded", h, func() error {
			return h.OnMovementRecorded(ctx, rc, movement)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) BeforeClose(ctx context.Context, terminal model.Terminal, cashup model.Cashup, payload *model.ClosePayload) error {
	for _, h := range p.close {
		if err := p.call("OnBeforeClose", h, func() error {
			return h.OnBeforeClose(ctx, terminal, cashup, payload)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) AfterGrouping(ctx context.Context, cashup model.Cashup, result *model.OrderGroupResult) error {
	for _, h := range p.grouping {
		if err := p.call("OnAfterGrouping", h, func() error {
			return h.OnAfterGrouping(ctx, cashup, result)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) CashupClosed(ctx context.Context, rc model.RequestContext, cashup model.Cashup, outcome model.CloseOutcome) error {
	for _, h := range p.closed {
		if err := p.call("OnCashupClosed", h, func() error {
			return h.OnCashupClosed(ctx, rc, cashup, outcome)
		}); err != nil {
			return err
		}
	}
	return nil
}

// call перехватывает панику обработчика и превращает ее в ошибку.
func (p *Pipeline) call(point string, h any, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %T panicked: %v", h, r)
		}
		if err != nil {
			p.zaplog.Warn("hook failed",
				zap.String("point", point),
				zap.String("hook", fmt.Sprintf("%T", h)),
				zap.Error(err))
		}
	}()
	return fn()
}
