package nats

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
	"github.com/mpapenbr/participant-core-go/testsupport/tcnats"
)

func TestNatsPersister(t *testing.T) {
	nc := tcnats.SetupTestNats(t)
	ctx := context.Background()
	p, err := New(
		[]persist.Option{persist.WithKey("test-" + t.Name())},
		[]Option{WithNATS(nc), WithBucket("pcc_state_test")})
	assert.NilError(t, err)
	t.Cleanup(func() { _ = p.Clear(ctx) })

	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, persist.ErrNotFound)

	assert.NilError(t, p.Save(ctx, []byte(`{"v":1}`)))
	got, err := p.Load(ctx)
	assert.NilError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))

	assert.NilError(t, p.Clear(ctx))
	assert.NilError(t, p.Clear(ctx))
	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestNatsPersisterNeedsConnection(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNoNatsConn)
}
