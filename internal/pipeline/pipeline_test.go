package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"coin-tracker/internal/auth"
	"coin-tracker/internal/ledger"
	"coin-tracker/internal/model"
	"coin-tracker/internal/retry"
	"coin-tracker/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
)

type fakeFetcher struct {
	metrics *model.CoinMetrics
	err     error
	calls   int
	got     model.RunParameters
}

func (f *fakeFetcher) Fetch(ctx context.Context, params model.RunParameters) (*model.CoinMetrics, error) {
	f.calls++
	f.got = params
	return f.metrics, f.err
}

type fakeProvider struct {
	err   error
	calls int
}

func (f *fakeProvider) Credentials(ctx context.Context) (*auth.Credentials, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	tok := &oauth2.Token{AccessToken: "t", Expiry: time.Now().Add(time.Hour)}
	return &auth.Credentials{TokenSource: oauth2.StaticTokenSource(tok), Token: tok}, nil
}

type fakeAppender struct {
	err     error
	calls   int
	sheetID string
	row     ledger.OutputRow
}

func (f *fakeAppender) AppendRow(ctx context.Context, sheetID string, creds *auth.Credentials, row ledger.OutputRow) error {
	f.calls++
	f.sheetID = sheetID
	f.row = row
	return f.err
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }

func goodMetrics() *model.CoinMetrics {
	return &model.CoinMetrics{
		LastUpdateEpochMs: ptrI(1700000000000),
		RewardsInDay:      ptrF(0.01),
		RevenueInDayUSD:   ptrF(20.0),
		ProfitInDayUSD:    ptrF(15.0),
	}
}

func newTestPipeline(t *testing.T, f *fakeFetcher, p *fakeProvider, a *fakeAppender) *Pipeline {
	t.Helper()
	pl, err := New(Options{Fetcher: f, Credentials: p, Appender: a, Location: time.UTC, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return pl
}

func TestRun_EndToEnd(t *testing.T) {
	f := &fakeFetcher{metrics: goodMetrics()}
	p := &fakeProvider{}
	a := &fakeAppender{}
	params := model.RunParameters{Hashrate: 62000000, PowerWatts: 130.0, PowerCostPerKwh: 0.122}

	status, err := newTestPipeline(t, f, p, a).Run(context.Background(), "sheet-1", params)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	assert.Equal(t, params, f.got)
	assert.Equal(t, 1, p.calls)
	require.Equal(t, 1, a.calls)
	assert.Equal(t, "sheet-1", a.sheetID)

	v := a.row.Values()
	assert.Equal(t, []interface{}{"2023-11-14 22:13:20", 0.01, 20.0, 15.0, int64(62000000), 130.0, 0.122}, v[:7])
	assert.InDelta(t, 0.0075, v[7], 1e-12)
}

func TestRun_NeverAppendsOnUpstreamFailure(t *testing.T) {
	zeroRevenue := goodMetrics()
	zeroRevenue.RevenueInDayUSD = ptrF(0)

	cases := map[string]struct {
		fetcher  *fakeFetcher
		provider *fakeProvider
		class    string
	}{
		"fetch fatal": {
			fetcher:  &fakeFetcher{err: &retry.FatalError{StatusCode: 404}},
			provider: &fakeProvider{},
			class:    "fetch_error",
		},
		"zero revenue": {
			fetcher:  &fakeFetcher{metrics: zeroRevenue},
			provider: &fakeProvider{},
			class:    "data_error",
		},
		"no credentials": {
			fetcher:  &fakeFetcher{metrics: goodMetrics()},
			provider: &fakeProvider{err: &auth.AuthError{Mode: auth.ModeAmbient, Err: errors.New("none")}},
			class:    "auth_error",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a := &fakeAppender{}
			status, err := newTestPipeline(t, tc.fetcher, tc.provider, a).Run(context.Background(), "sheet-1", model.DefaultRunParameters())
			require.Error(t, err)
			assert.Empty(t, status)
			assert.Equal(t, tc.class, Classify(err))
			assert.Zero(t, a.calls)
		})
	}
}

func TestRun_WriteErrorPropagates(t *testing.T) {
	a := &fakeAppender{err: &sheets.WriteError{SheetID: "sheet-1", StatusCode: 404, Err: errors.New("not found")}}
	_, err := newTestPipeline(t, &fakeFetcher{metrics: goodMetrics()}, &fakeProvider{}, a).
		Run(context.Background(), "sheet-1", model.DefaultRunParameters())

	var werr *sheets.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, "write_error", Classify(err))
}

func TestRun_RejectsInvalidInput(t *testing.T) {
	f := &fakeFetcher{metrics: goodMetrics()}
	pl := newTestPipeline(t, f, &fakeProvider{}, &fakeAppender{})

	_, err := pl.Run(context.Background(), "", model.DefaultRunParameters())
	assert.Error(t, err)
	_, err = pl.Run(context.Background(), "sheet-1", model.RunParameters{Hashrate: 0})
	assert.Error(t, err)
	assert.Equal(t, "invalid", Classify(err))
	assert.Zero(t, f.calls)
}

func TestPreview_DoesNotAuthenticate(t *testing.T) {
	p := &fakeProvider{}
	a := &fakeAppender{}
	row, err := newTestPipeline(t, &fakeFetcher{metrics: goodMetrics()}, p, a).
		Preview(context.Background(), model.DefaultRunParameters(), nil)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20", row.Timestamp)
	assert.Zero(t, p.calls)
	assert.Zero(t, a.calls)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Fetcher: &fakeFetcher{}})
	assert.Error(t, err)
	_, err = New(Options{Fetcher: &fakeFetcher{}, Credentials: &fakeProvider{}})
	assert.Error(t, err)
}
