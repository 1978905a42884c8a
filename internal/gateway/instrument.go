package gateway

import (
	"context"
	"time"

	"github.com/hitoshi/noteman/internal/model"
)

// CallRecorder はバックエンド呼び出しの結果と所要時間を記録する。
// 実装はmetricsパッケージが提供する。
type CallRecorder interface {
	RecordGatewayCall(operation string, err error, duration time.Duration)
}

// InstrumentedGateway はGatewayの各操作を計測するデコレーター。
type InstrumentedGateway struct {
	inner    Gateway
	recorder CallRecorder
}

// NewInstrumentedGateway は計測付きGatewayを生成する。
func NewInstrumentedGateway(inner Gateway, recorder CallRecorder) *InstrumentedGateway {
	return &InstrumentedGateway{inner: inner, recorder: recorder}
}

func (g *InstrumentedGateway) SignIn(ctx context.Context, email, password string) (*model.User, Tokens, error) {
	start := time.Now()
	user, tokens, err := g.inner.SignIn(ctx, email, password)
	g.recorder.RecordGatewayCall("sign_in", err, time.Since(start))
	return user, tokens, err
}

func (g *InstrumentedGateway) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	start := time.Now()
	user, err := g.inner.SignUp(ctx, email, password)
	g.recorder.RecordGatewayCall("sign_up", err, time.Since(start))
	return user, err
}

func (g *InstrumentedGateway) SignOut(ctx context.Context) error {
	start := time.Now()
	err := g.inner.SignOut(ctx)
	g.recorder.RecordGatewayCall("sign_out", err, time.Since(start))
	return err
}

func (g *InstrumentedGateway) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	start := time.Now()
	rows, err := g.inner.Select(ctx, table, q)
	g.recorder.RecordGatewayCall("select", err, time.Since(start))
	return rows, err
}

func (g *InstrumentedGateway) Insert(ctx context.Context, table string, row Row) (Row, error) {
	start := time.Now()
	inserted, err := g.inner.Insert(ctx, table, row)
	g.recorder.RecordGatewayCall("insert", err, time.Since(start))
	return inserted, err
}

func (g *InstrumentedGateway) Update(ctx context.Context, table, id string, partial Row) (Row, error) {
	start := time.Now()
	updated, err := g.inner.Update(ctx, table, id, partial)
	g.recorder.RecordGatewayCall("update", err, time.Since(start))
	return updated, err
}

func (g *InstrumentedGateway) Delete(ctx context.Context, table, id string) (Row, error) {
	start := time.Now()
	deleted, err := g.inner.Delete(ctx, table, id)
	g.recorder.RecordGatewayCall("delete", err, time.Since(start))
	return deleted, err
}

func (g *InstrumentedGateway) Count(ctx context.Context, table string, filters map[string]string) (int, error) {
	start := time.Now()
	count, err := g.inner.Count(ctx, table, filters)
	g.recorder.RecordGatewayCall("count", err, time.Since(start))
	return count, err
}

var _ Gateway = (*InstrumentedGateway)(nil)
