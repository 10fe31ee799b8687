package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-dispatchproto/service"
)

func TestReadyIsImmediatelySettled(t *testing.T) {
	t.Parallel()

	fut := service.Ready(7, nil)
	resp, ready, err := fut.Poll()
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, 7, resp)
}

func TestReadyCarriesError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	fut := service.Ready(0, sentinel)
	_, ready, err := fut.Poll()
	require.True(t, ready)
	assert.ErrorIs(t, err, sentinel)
}

func TestFuncAdaptsPlainFunction(t *testing.T) {
	t.Parallel()

	var gotReq int
	svc := service.Func[int, string](func(req int) service.Future[string] {
		gotReq = req
		return service.Ready("ok", nil)
	})

	fut := svc.Call(5)
	resp, ready, err := fut.Poll()
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 5, gotReq)
}
