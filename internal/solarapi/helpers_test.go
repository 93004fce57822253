package solarapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/resident-x/go-fronius/internal/datastore"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	URL      string
	Endpoint string
	Params   url.Values
}

// fakeDatamanager answers Fetch calls from canned documents keyed by
// endpoint name, or by "endpoint?DeviceClass=<class>" for device listings.
type fakeDatamanager struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requests  []recordedRequest
}

func newFakeDatamanager() *fakeDatamanager {
	return &fakeDatamanager{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (f *fakeDatamanager) Fetch(_ context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	name := path.Base(u.Path)
	f.requests = append(f.requests, recordedRequest{URL: endpoint, Endpoint: name, Params: params})

	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if class := params.Get("DeviceClass"); class != "" {
		if body, ok := f.responses[name+"?DeviceClass="+class]; ok {
			return json.RawMessage(body), nil
		}
	}
	if body, ok := f.responses[name]; ok {
		return json.RawMessage(body), nil
	}
	return nil, errors.New("connection refused")
}

func (f *fakeDatamanager) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request was made")
	return f.requests[len(f.requests)-1]
}

func (f *fakeDatamanager) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func envelope(code int, data string) string {
	return fmt.Sprintf(`{"Head":{"RequestArguments":{},"Status":{"Code":%d,"Reason":"","UserMessage":""},"Timestamp":"2020-06-01T12:00:00+02:00"},"Body":{"Data":%s}}`, code, data)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

var fixedTime = time.Unix(1600000000, 0)

func newTestDialect(t *testing.T, version APIVersion, fake *fakeDatamanager, store *datastore.Store) Dialect {
	t.Helper()
	d, err := NewDialect(version, Config{
		Fetcher: fake,
		BaseURL: mustURL(t, "http://datamanager/solar_api/v1/"),
		Store:   store,
		Now:     func() time.Time { return fixedTime },
	})
	require.NoError(t, err)
	return d
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (o *recordingObserver) ObserveRequest(_ string, outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
