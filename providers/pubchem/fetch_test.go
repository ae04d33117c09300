package pubchem

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compound-hand/config"
	"compound-hand/models"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		PubChemBaseURL:    baseURL,
		PubChemMaxRetries: 3,
		PubChemRetryDelay: 10 * time.Millisecond,
		PubChemCallDelay:  0,
		PubChemTimeout:    2 * time.Second,
	}
}

func TestLookupSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/compound/name/Malathion/property/IUPACName/JSON":
			fmt.Fprint(w, `{"PropertyTable": {"Properties": [{"CID": 4004, "IUPACName": "diethyl 2-dimethoxyphosphinothioylsulfanylbutanedioate"}]}}`)
		case r.URL.Path == "/compound/cid/4004/synonyms/JSON":
			fmt.Fprint(w, `{"InformationList": {"Information": [{"CID": 4004, "Synonym": ["malathion", "MALATHION-D10", "121-75-5", "83-05-6"]}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher(testConfig(server.URL), zap.NewNop())
	cand, err := f.Lookup(context.Background(), "Malathion")
	require.NoError(t, err)

	assert.Equal(t, models.LookupSuccess, cand.Status)
	// Die erste CAS-förmige Zeichenkette gewinnt, nicht irgendein Synonym.
	assert.Equal(t, "121-75-5", cand.CASNumber)
	assert.Equal(t, int64(4004), cand.CID)
	assert.NotEmpty(t, cand.IUPACName)
}

func TestLookupNameNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewFetcher(testConfig(server.URL), zap.NewNop())
	cand, err := f.Lookup(context.Background(), "Definitely Not A Compound")
	require.NoError(t, err)
	assert.Equal(t, models.LookupNotFound, cand.Status)
	assert.Empty(t, cand.CASNumber)
}

func TestLookupNoCASInSynonyms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/compound/name/Thing/property/IUPACName/JSON" {
			fmt.Fprint(w, `{"PropertyTable": {"Properties": [{"CID": 1, "IUPACName": "thing"}]}}`)
			return
		}
		fmt.Fprint(w, `{"InformationList": {"Information": [{"CID": 1, "Synonym": ["thing", "THING-X", "12-34-56"]}]}}`)
	}))
	defer server.Close()

	f := NewFetcher(testConfig(server.URL), zap.NewNop())
	cand, err := f.Lookup(context.Background(), "Thing")
	require.NoError(t, err)
	assert.Equal(t, models.LookupCASNotFound, cand.Status)
	assert.Equal(t, int64(1), cand.CID)
}

func TestLookupServerErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(testConfig(server.URL), zap.NewNop())
	cand, err := f.Lookup(context.Background(), "Thing")
	require.NoError(t, err)

	assert.Equal(t, models.LookupError, cand.Status)
	// HTTP-Fehlerstatus wird nicht wiederholt.
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupRetriesTransportErrors(t *testing.T) {
	// Server sofort schließen: jeder Aufruf scheitert auf Transport-Ebene.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	cfg := testConfig(server.URL)
	f := NewFetcher(cfg, zap.NewNop())

	cand, err := f.Lookup(context.Background(), "Thing")
	require.Error(t, err)
	assert.Equal(t, models.LookupError, cand.Status)
	assert.NotEmpty(t, cand.Notes)
}

func TestLookupRetriesTruncatedBodyWithDelay(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var timestamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		// Mehr ankündigen als liefern: der Client scheitert beim Lesen des Körpers.
		w.Header().Set("Content-Length", "1000")
		fmt.Fprint(w, "truncated")
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.PubChemRetryDelay = 50 * time.Millisecond
	f := NewFetcher(cfg, zap.NewNop())

	cand, err := f.Lookup(context.Background(), "Thing")
	require.Error(t, err)
	assert.Equal(t, models.LookupError, cand.Status)
	require.Equal(t, int32(3), calls.Load())

	// Auch Lese-Fehler müssen die Retry-Pause einhalten, nicht sofort neu feuern.
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(timestamps); i++ {
		assert.GreaterOrEqual(t, timestamps[i].Sub(timestamps[i-1]), cfg.PubChemRetryDelay)
	}
}

func TestCASRegex(t *testing.T) {
	valid := []string{"50-00-0", "1912-24-9", "121-75-5", "1234567-89-0"}
	for _, v := range valid {
		assert.True(t, casRegex.MatchString(v), v)
	}

	invalid := []string{"12-34-56", "1-23-4", "12345678-90-1", "50-00-0x", "CAS 50-00-0"}
	for _, v := range invalid {
		assert.False(t, casRegex.MatchString(v), v)
	}
}
