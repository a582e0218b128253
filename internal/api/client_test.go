package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/contestr/internal/api/devserver"
	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/tokenstore"
)

func newBackend(t *testing.T, opts ...devserver.Option) (*devserver.Server, *httptest.Server) {
	t.Helper()
	dev := devserver.New(opts...)
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)
	return dev, srv
}

func TestClient_SaveAndStart(t *testing.T) {
	dev, srv := newBackend(t)
	client := NewClient(srv.URL + "/")
	require.Equal(t, srv.URL, client.BaseURL())

	creds, err := NewCookieCredentials(client, "")
	require.NoError(t, err)

	ctx := context.Background()
	err = client.SaveData(ctx, gateway.SaveDataRequest{
		ContestID:          "c-1",
		AssessmentOverview: map[string]any{"name": "Spring"},
		TestConfiguration:  map[string]any{"duration": "01:30"},
	})
	require.NoError(t, err)

	csrf, err := creds.CSRFToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, csrf)

	// The cookie is reused rather than fetched again
	again, err := creds.CSRFToken(ctx)
	require.NoError(t, err)
	require.Equal(t, csrf, again)

	token, err := client.StartContest(ctx, "c-1", csrf)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored, ok := dev.Contest("c-1")
	require.True(t, ok)
	require.Equal(t, token, stored.Token)
	require.Equal(t, "Spring", stored.AssessmentOverview["name"])
}

func TestClient_StartContestErrors(t *testing.T) {
	dev, srv := newBackend(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	creds, err := NewCookieCredentials(client, DefaultCSRFPath)
	require.NoError(t, err)
	csrf, err := creds.CSRFToken(ctx)
	require.NoError(t, err)

	t.Run("unknown contest", func(t *testing.T) {
		_, err := client.StartContest(ctx, "missing", csrf)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	})

	require.NoError(t, client.SaveData(ctx, gateway.SaveDataRequest{ContestID: "c-2"}))

	t.Run("missing csrf header", func(t *testing.T) {
		_, err := client.StartContest(ctx, "c-2", "")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	})

	t.Run("mismatched csrf header", func(t *testing.T) {
		_, err := client.StartContest(ctx, "c-2", "forged")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	})

	t.Run("token service down", func(t *testing.T) {
		dev.FailToken.Store(true)
		defer dev.FailToken.Store(false)

		_, err := client.StartContest(ctx, "c-2", csrf)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
		require.Contains(t, err.Error(), "token service unavailable")
	})
}

func TestClient_SaveFailure(t *testing.T) {
	dev, srv := newBackend(t)
	dev.FailSave.Store(true)

	err := NewClient(srv.URL).SaveData(context.Background(), gateway.SaveDataRequest{ContestID: "c-3"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.Equal(t, 0, dev.Count())
}

const staticToken = "static-token"

func TestClient_EmptyToken(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(CSRFHeader)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": ""})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).StartContest(context.Background(), "c-4", staticToken)
	require.ErrorIs(t, err, ErrEmptyToken)
	require.Equal(t, staticToken, gotHeader)
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()

	token, err := StaticCredentials("abc").CSRFToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc", token)

	token, err = NoCredentials{}.CSRFToken(ctx)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestCookieCredentials_NoCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	creds, err := NewCookieCredentials(NewClient(srv.URL), "")
	require.NoError(t, err)

	_, err = creds.CSRFToken(context.Background())
	require.ErrorIs(t, err, ErrNoCSRFCookie)
}

func TestGatewayOverHTTP_RoundTrip(t *testing.T) {
	dev, srv := newBackend(t)
	client := NewClient(srv.URL)
	creds, err := NewCookieCredentials(client, "")
	require.NoError(t, err)

	store := tokenstore.NewMemory()
	gw := gateway.New(client, store, gateway.WithCredentials(creds))

	d := draft.New()
	overview := map[string]any{
		draft.FieldName:              "Spring Qualifier",
		draft.FieldDescription:       "Round one <b>bold</b> & \"quoted\"",
		draft.FieldRegistrationStart: "2026-03-01T09:00",
		draft.FieldRegistrationEnd:   "2026-03-10T18:00",
		draft.FieldMaxRegistrations:  "0500",
		draft.FieldGuidelines:        "Line one\nLine two",
	}
	for field, v := range overview {
		d, err = d.With(draft.SectionOverview, field, v)
		require.NoError(t, err)
	}
	d, err = d.With(draft.SectionConfiguration, draft.FieldFaceDetection, true)
	require.NoError(t, err)
	d, err = d.With(draft.SectionConfiguration, draft.FieldPassPercentage, "40.50")
	require.NoError(t, err)

	handle, err := gw.Submit(context.Background(), d)
	require.NoError(t, err)

	stored, ok := dev.Contest(handle.ContestID)
	require.True(t, ok)
	for field, v := range overview {
		require.Equal(t, v, stored.AssessmentOverview[field], field)
	}
	require.Equal(t, true, stored.TestConfiguration[draft.FieldFaceDetection])
	require.Equal(t, "40.50", stored.TestConfiguration[draft.FieldPassPercentage])

	token, err := store.Get(context.Background(), gateway.TokenKey)
	require.NoError(t, err)
	require.Equal(t, stored.Token, token)
	require.Equal(t, handle.Token, token)
}
