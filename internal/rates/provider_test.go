package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/config"
)

type memStore struct {
	rates map[string]float64
	saves int
}

func newMemStore() *memStore {
	return &memStore{rates: make(map[string]float64)}
}

func (m *memStore) key(from, to, date string) string {
	return from + "/" + to + "@" + date
}

func (m *memStore) GetRate(_ context.Context, from, to, date string) (float64, bool, error) {
	r, ok := m.rates[m.key(from, to, date)]
	return r, ok, nil
}

func (m *memStore) SaveRate(_ context.Context, from, to, date string, rate float64) error {
	m.rates[m.key(from, to, date)] = rate
	m.saves++
	return nil
}

func newProvider(t *testing.T, frankfurter, ecbData, ecbXML string, store Store) *Provider {
	t.Helper()
	return NewProvider(config.RatesConfig{
		FrankfurterURL: frankfurter,
		ECBDataURL:     ecbData,
		ECBDailyXMLURL: ecbXML,
		Timeout:        5 * time.Second,
	}, store, zap.NewNop())
}

func TestRate_IdentityWithoutLookup(t *testing.T) {
	p := newProvider(t, "http://unreachable.invalid", "http://unreachable.invalid", "http://unreachable.invalid", newMemStore())

	rate, err := p.Rate(context.Background(), "EUR", "EUR", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}

func TestRate_FrankfurterPrimary(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		fmt.Fprint(w, `{"base":"USD","rates":{"EUR":0.92}}`)
	}))
	defer srv.Close()

	store := newMemStore()
	p := newProvider(t, srv.URL, "http://unreachable.invalid", "http://unreachable.invalid", store)

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	rate, err := p.Rate(context.Background(), "USD", "EUR", date)
	require.NoError(t, err)
	assert.Equal(t, 0.92, rate)
	assert.Equal(t, "/2026-03-15?from=USD&to=EUR", gotPath)
	assert.Equal(t, 1, store.saves)
}

func TestRate_CacheShortCircuits(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"rates":{"EUR":0.92}}`)
	}))
	defer srv.Close()

	store := newMemStore()
	p := newProvider(t, srv.URL, "http://unreachable.invalid", "http://unreachable.invalid", store)

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	_, err := p.Rate(context.Background(), "USD", "EUR", date)
	require.NoError(t, err)
	_, err = p.Rate(context.Background(), "USD", "EUR", date)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestRate_FallsBackToECBData(t *testing.T) {
	frankfurter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer frankfurter.Close()

	ecb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// EUR buys 1.0870 USD on this day
		fmt.Fprintln(w, "KEY,FREQ,CURRENCY,OBS_VALUE,TIME_PERIOD")
		fmt.Fprintln(w, "EXR.D.USD.EUR.SP00.A,D,USD,1.0870,2026-03-15")
	}))
	defer ecb.Close()

	p := newProvider(t, frankfurter.URL, ecb.URL, "http://unreachable.invalid", newMemStore())

	rate, err := p.Rate(context.Background(), "USD", "EUR", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 1/1.0870, rate, 1e-9)
}

func TestRate_FallsBackToDailyXML(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	xmlSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
  <Cube><Cube time="2026-03-15">
    <Cube currency="USD" rate="1.0870"/>
    <Cube currency="GBP" rate="0.8550"/>
  </Cube></Cube>
</gesmes:Envelope>`)
	}))
	defer xmlSrv.Close()

	p := newProvider(t, failing.URL, failing.URL, xmlSrv.URL, newMemStore())

	rate, err := p.Rate(context.Background(), "USD", "GBP", time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.8550/1.0870, rate, 1e-9)
}

func TestRate_AllProvidersFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	p := newProvider(t, failing.URL, failing.URL, failing.URL, newMemStore())

	_, err := p.Rate(context.Background(), "USD", "EUR", time.Now())
	require.Error(t, err)
}
