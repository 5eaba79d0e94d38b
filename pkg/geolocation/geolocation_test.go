package geolocation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingLocator struct{}

func (blockingLocator) Locate(ctx context.Context) (Position, error) {
	<-ctx.Done()
	return Position{}, ctx.Err()
}

type failingLocator struct{ err error }

func (f failingLocator) Locate(context.Context) (Position, error) {
	return Position{}, f.err
}

func TestLocateWithin(t *testing.T) {
	ctx := context.Background()

	pos, err := LocateWithin(ctx, &StaticLocator{Position: Position{Latitude: 48.1, Longitude: 11.5}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Position{Latitude: 48.1, Longitude: 11.5}, pos)

	_, err = LocateWithin(ctx, blockingLocator{}, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrGroundingUnavailable)

	_, err = LocateWithin(ctx, failingLocator{err: errors.New("denied")}, time.Second)
	assert.ErrorIs(t, err, ErrGroundingUnavailable)

	_, err = LocateWithin(ctx, NoopLocator{}, time.Second)
	assert.ErrorIs(t, err, ErrGroundingUnavailable)

	_, err = LocateWithin(ctx, nil, time.Second)
	assert.ErrorIs(t, err, ErrGroundingUnavailable)
}

func TestIPLocator(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"success","lat":52.52,"lon":13.405}`))
		}))
		defer srv.Close()

		pos, err := NewIPLocator(srv.URL).Locate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Position{Latitude: 52.52, Longitude: 13.405}, pos)
	})

	t.Run("lookup failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
		}))
		defer srv.Close()

		_, err := NewIPLocator(srv.URL).Locate(context.Background())
		assert.ErrorIs(t, err, ErrGroundingUnavailable)
	})

	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewIPLocator(srv.URL).Locate(context.Background())
		assert.ErrorIs(t, err, ErrGroundingUnavailable)
	})
}
