package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

func TestAPI_SuccessDelivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAPI()
	err := a.Deliver(context.Background(), models.Notification{Type: models.NotifyInfo, Title: "t"}, models.Channel{Endpoint: srv.URL})
	require.NoError(t, err)
}

func TestAPI_ServerErrorIsRecordedNotPanicked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAPI()
	err := a.Deliver(context.Background(), models.Notification{Type: models.NotifyInfo}, models.Channel{Endpoint: srv.URL})
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrServiceUnavailable, kind)
}

func TestAPI_MissingEndpointIsInvalidInput(t *testing.T) {
	a := NewAPI()
	err := a.Deliver(context.Background(), models.Notification{Type: models.NotifyInfo}, models.Channel{})
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrInvalidInput, kind)
}
