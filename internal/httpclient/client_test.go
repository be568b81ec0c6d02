package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsHeadersAndKeepsCookies(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			return
		}
		gotUA = r.Header.Get("User-Agent")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
	}))
	defer srv.Close()

	client, err := New(Options{Timeout: 5 * time.Second, Header: BrowserHeaders(srv.URL)})
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/api")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, "abc", gotCookie)
}

func TestHeaderTransportLeavesRequestUntouched(t *testing.T) {
	var gotReferer, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	client, err := New(Options{Header: BrowserHeaders("https://nspd.gov.ru/")})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://nspd.gov.ru/", gotReferer)
	assert.Equal(t, "application/json, text/javascript, */*; q=0.01", gotAccept)
	assert.Equal(t, "text/html", req.Header.Get("Accept"))
	assert.Empty(t, req.Header.Get("Referer"))
}
