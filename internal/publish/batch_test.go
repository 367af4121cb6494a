package publish

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
)

func TestPublishAll_ContinuesPastFailures(t *testing.T) {
	st := testStore(t)
	p := New(&scriptedClient{}, WithStore(st), WithConcurrency(2))

	var calls atomic.Int32
	res, err := p.PublishAll(context.Background(), "milling", model.DocTypeProcess,
		[]string{"1", "2", "3", "4"},
		func(_ context.Context, id string) error {
			calls.Add(1)
			switch id {
			case "2":
				return errors.New("recording: open 2: no such file")
			case "4":
				return resilience.NewTransientError(errors.New("gateway down"), 503)
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int64(2), res.Succeeded)
	assert.Equal(t, int64(2), res.Failed)

	entries, err := st.ListFailures(context.Background(), resilience.FailureFilter{Process: "milling"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	types := map[string]string{}
	for _, e := range entries {
		types[e.PartID] = e.ErrorType
		assert.Equal(t, model.DocTypeProcess, e.DocType)
	}
	assert.Equal(t, resilience.ErrorTypePermanent, types["2"])
	assert.Equal(t, resilience.ErrorTypeTransient, types["4"])
}

func TestPublishAll_Empty(t *testing.T) {
	p := New(&scriptedClient{})
	res, err := p.PublishAll(context.Background(), "sawing", model.DocTypeProcess, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	assert.Zero(t, res.Failed)
}

func TestPublishAll_NoStore(t *testing.T) {
	p := New(&scriptedClient{})
	res, err := p.PublishAll(context.Background(), "turning", model.DocTypeProduct, []string{"a"},
		func(context.Context, string) error { return errors.New("boom") })
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Failed)
}
