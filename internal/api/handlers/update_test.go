package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coin-tracker/internal/api/models"
	"coin-tracker/internal/auth"
	"coin-tracker/internal/ledger"
	"coin-tracker/internal/model"
	"coin-tracker/internal/retry"
	"coin-tracker/internal/sheets"
	"coin-tracker/internal/trigger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeRunner struct {
	calls   int
	sheetID string
	params  model.RunParameters
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, sheetID string, params model.RunParameters) (string, error) {
	f.calls++
	f.sheetID = sheetID
	f.params = params
	if f.err != nil {
		return "", f.err
	}
	return "Successful Update", nil
}

type fakePreviewer struct {
	params model.RunParameters
	err    error
}

func (f *fakePreviewer) Preview(ctx context.Context, params model.RunParameters, log *zap.Logger) (ledger.OutputRow, error) {
	f.params = params
	if f.err != nil {
		return ledger.OutputRow{}, f.err
	}
	return ledger.OutputRow{
		Timestamp:       "2026-03-01 12:00:00",
		RewardsInDay:    0.002,
		RevenueInDayUSD: 6,
		ProfitInDayUSD:  5.6,
		Hashrate:        params.Hashrate,
		PowerWatts:      params.PowerWatts,
		PowerCostPerKwh: params.PowerCostPerKwh,
		ProfitInRewards: 0.0018666666666666669,
	}, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRouter(t *testing.T, r *fakeRunner, p *fakePreviewer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	th := trigger.NewHandler(r, "env-sheet", model.DefaultRunParameters(), zaptest.NewLogger(t))
	th.Now = func() time.Time { return now }
	h := NewUpdateHandler(th, p)

	router := gin.New()
	router.POST("/api/v1/update", h.Update)
	router.GET("/api/v1/preview", h.Preview)
	router.POST("/api/v1/events", h.PushEvent)
	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorDetail {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestUpdate_Success(t *testing.T) {
	r := &fakeRunner{}
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/update",
		`{"sheet_id":"abc","hashrate":100000000,"power_watts":200}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Successful Update", resp.Status)

	assert.Equal(t, "abc", r.sheetID)
	assert.Equal(t, int64(100_000_000), r.params.Hashrate)
	assert.Equal(t, 200.0, r.params.PowerWatts)
	assert.Equal(t, model.DefaultPowerCostPerKwh, r.params.PowerCostPerKwh)
}

func TestUpdate_EmptyBodyUsesConfiguredSheet(t *testing.T) {
	r := &fakeRunner{}
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/update", `{}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "env-sheet", r.sheetID)
	assert.Equal(t, model.DefaultRunParameters(), r.params)
}

func TestUpdate_ExplicitZeroPowerIsKept(t *testing.T) {
	r := &fakeRunner{}
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/update",
		`{"sheet_id":"abc","power_watts":0,"power_cost_per_kwh":0}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.RunParameters{Hashrate: model.DefaultHashrate, PowerWatts: 0, PowerCostPerKwh: 0}, r.params)
}

func TestUpdate_ZeroHashrateIsRejected(t *testing.T) {
	r := &fakeRunner{}
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/update", `{"hashrate":0}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, r.calls)
}

func TestUpdate_InvalidBody(t *testing.T) {
	r := &fakeRunner{}
	router := newRouter(t, r, nil)

	w := do(router, http.MethodPost, "/api/v1/update", `{"hashrate":-5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)

	w = do(router, http.MethodPost, "/api/v1/update", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, r.calls)
}

func TestUpdate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"fatal upstream", &retry.FatalError{StatusCode: 503, Attempts: 21}, http.StatusBadGateway, "METRICS_API_ERROR"},
		{"data", &model.DataError{Field: "revenueInDayUSD", Message: "missing"}, http.StatusUnprocessableEntity, "METRICS_DATA_ERROR"},
		{"auth", &auth.AuthError{Mode: auth.ModeStored, Err: assert.AnError}, http.StatusInternalServerError, "AUTH_ERROR"},
		{"write", &sheets.WriteError{SheetID: "abc", StatusCode: 403, Err: assert.AnError}, http.StatusBadGateway, "SHEET_WRITE_ERROR"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"other", assert.AnError, http.StatusBadRequest, "INVALID_PARAMETERS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newRouter(t, &fakeRunner{err: tc.err}, nil), http.MethodPost, "/api/v1/update", `{}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
}

func TestUpdate_FatalErrorDetails(t *testing.T) {
	w := do(newRouter(t, &fakeRunner{err: &retry.FatalError{StatusCode: 429, Attempts: 21}}, nil),
		http.MethodPost, "/api/v1/update", `{}`)
	detail := decodeError(t, w)
	assert.EqualValues(t, 429, detail.Details["status_code"])
	assert.EqualValues(t, 21, detail.Details["attempts"])
}

func TestPreview(t *testing.T) {
	p := &fakePreviewer{}
	w := do(newRouter(t, &fakeRunner{}, p), http.MethodGet, "/api/v1/preview?hashrate=500000000", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ledger.Header(), resp.Columns)
	assert.Len(t, resp.Row, len(resp.Columns))
	assert.Equal(t, int64(500_000_000), p.params.Hashrate)
	assert.Equal(t, model.DefaultPowerWatts, p.params.PowerWatts)
}

func TestPreview_ExplicitZeroCostIsKept(t *testing.T) {
	p := &fakePreviewer{}
	w := do(newRouter(t, &fakeRunner{}, p), http.MethodGet, "/api/v1/preview?power_cost_per_kwh=0", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, p.params.PowerCostPerKwh)
	assert.Equal(t, model.DefaultPowerWatts, p.params.PowerWatts)
}

func TestPreview_InvalidQuery(t *testing.T) {
	w := do(newRouter(t, &fakeRunner{}, &fakePreviewer{}), http.MethodGet, "/api/v1/preview?hashrate=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func pushBody(data, publishTime string) string {
	return `{"message":{"data":"` + data + `","messageId":"m-1","publishTime":"` + publishTime + `"},"subscription":"projects/p/subscriptions/s"}`
}

func TestPushEvent_Update(t *testing.T) {
	r := &fakeRunner{}
	data := base64.StdEncoding.EncodeToString([]byte("update"))
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/events",
		pushBody(data, now.Add(-time.Minute).Format(time.RFC3339Nano)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "env-sheet", r.sheetID)
}

func TestPushEvent_StaleIsAcknowledged(t *testing.T) {
	r := &fakeRunner{}
	data := base64.StdEncoding.EncodeToString([]byte("update"))
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/events",
		pushBody(data, now.Add(-13*time.Hour).Format(time.RFC3339Nano)))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, trigger.StatusTimeout, resp.Status)
	assert.Zero(t, r.calls)
}

func TestPushEvent_OtherPayloadIgnored(t *testing.T) {
	r := &fakeRunner{}
	data := base64.StdEncoding.EncodeToString([]byte("noop"))
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/events", pushBody(data, ""))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, trigger.StatusIgnored, resp.Status)
}

func TestPushEvent_FailureRequestsRedelivery(t *testing.T) {
	r := &fakeRunner{err: &sheets.WriteError{SheetID: "env-sheet", StatusCode: 500, Err: assert.AnError}}
	data := base64.StdEncoding.EncodeToString([]byte("update"))
	w := do(newRouter(t, r, nil), http.MethodPost, "/api/v1/events",
		pushBody(data, now.Format(time.RFC3339Nano)))
	assert.GreaterOrEqual(t, w.Code, 500)
}
