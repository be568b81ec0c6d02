package httpclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

type Options struct {
	Timeout            time.Duration
	Header             http.Header
	InsecureSkipVerify bool
	MaxConnsPerHost    int
}

// New returns a session client: cookies persist between calls and connections are pooled.
// The client is safe for concurrent use and is meant to be created once per pipeline.
func New(opts Options) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("can't create cookie jar: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment
	transport.MaxIdleConnsPerHost = 16
	if opts.MaxConnsPerHost > 0 {
		transport.MaxConnsPerHost = opts.MaxConnsPerHost
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	var rt http.RoundTripper = transport
	if len(opts.Header) > 0 {
		rt = &headerTransport{next: transport, header: opts.Header.Clone()}
	}

	return &http.Client{
		Jar:       jar,
		Transport: rt,
		Timeout:   opts.Timeout,
	}, nil
}

// BrowserHeaders makes requests look like they come from a desktop browser.
// The geo-registry rejects clients with the default Go user agent.
func BrowserHeaders(referer string) http.Header {
	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")
	header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	if referer != "" {
		header.Set("Referer", referer)
	}
	return header
}

// headerTransport overrides the session headers on a copy of every outgoing request.
type headerTransport struct {
	next   http.RoundTripper
	header http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	for name, values := range t.header {
		out.Header.Del(name)
		for _, value := range values {
			out.Header.Add(name, value)
		}
	}

	return t.next.RoundTrip(out)
}
