package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/CTP/prod/steam/login", want: "/prod/steam/login"},
		{in: "/CTP2/prod/steam/get_scores", want: "/prod/steam/get_scores"},
		{in: "/prod/steam/login", want: "/prod/steam/login"},
		{in: "/favicon.ico", want: "/favicon.ico"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, UpstreamPath(tt.in))
		})
	}
}

func TestForward(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"user_id":77}`))
	}))
	defer srv.Close()

	f := NewHTTPForwarder(srv.URL, time.Second)
	body, err := f.Forward(context.Background(), scoreservice.UpstreamRequest{
		Method:   http.MethodPost,
		Path:     "/CTP/prod/steam/login",
		RawQuery: "user_id=77",
		Header:   http.Header{"Content-Type": {"application/x-www-form-urlencoded"}, "Host": {"cle.example"}},
		Body:     []byte("steam_id=765"),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"user_id":77}`, string(body))
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/prod/steam/login", got.URL.Path)
	assert.Equal(t, "user_id=77", got.URL.RawQuery)
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "steam_id=765", string(gotBody))
}

func TestForwardErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("-1337"))
	}))
	defer srv.Close()

	body, err := NewHTTPForwarder(srv.URL, time.Second).Forward(context.Background(), scoreservice.UpstreamRequest{Path: "/CTP/prod/steam/get_scores"})
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestForwardTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	body, err := NewHTTPForwarder(srv.URL, 100*time.Millisecond).Forward(context.Background(), scoreservice.UpstreamRequest{Path: "/CTP/prod/steam/get_scores"})
	require.Error(t, err)
	assert.Nil(t, body)
	assert.True(t, errors.Is(err, npp.ErrTransient))
}
