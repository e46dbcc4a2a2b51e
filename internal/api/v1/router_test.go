package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/domain"
	"github.com/sefa-b/game-economy/internal/repository"
	"github.com/sefa-b/game-economy/internal/service"
	"github.com/sefa-b/game-economy/internal/utils"
)

type apiResponse struct {
	Status string          `json:"status"`
	Value  json.RawMessage `json:"value"`
	Error  string          `json:"error"`
	Code   int             `json:"code"`
}

func newTestServer(t *testing.T) (http.Handler, *service.Services) {
	t.Helper()
	ctx := context.Background()

	db, err := repository.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, repository.Migrate(ctx, db))

	transactions := repository.NewTransactionRepository(db, cache.NewMemory[domain.Namespace, domain.Transaction](cache.Options{}), repository.RefreshIfHot)
	currencies := repository.NewCurrencyRepository(db, cache.NewMemory[string, domain.Currency](cache.Options{}), repository.RefreshIfHot)
	subjects := repository.NewSubjectRepository(db, cache.NewMemory[uuid.UUID, domain.Subject](cache.Options{}), repository.RefreshIfHot)

	services := &service.Services{
		Ledger:       service.NewTransactionHandler(transactions, currencies, subjects, false),
		Transactions: transactions,
		Currencies:   currencies,
		Subjects:     subjects,
	}

	mux := http.NewServeMux()
	NewRouter(services, utils.NewMetricsCollector()).RegisterRoutes(mux)
	return mux, services
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, apiResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var res apiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res), rr.Body.String())
	return rr.Code, res
}

func TestPing(t *testing.T) {
	h, _ := newTestServer(t)

	code, res := do(t, h, "GET", "/api/v1/ping", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", res.Status)
	assert.JSONEq(t, `"pong"`, string(res.Value))
}

func TestBalanceFlow(t *testing.T) {
	h, _ := newTestServer(t)
	base := "/api/v1/subjects/" + uuid.NewString() + "/balances/gold"

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantValue  string
	}{
		{"missing row", "GET", base, "", http.StatusNotFound, ""},
		{"negative open", "PUT", base, `{"amount":-500}`, http.StatusBadRequest, ""},
		{"still missing", "GET", base, "", http.StatusNotFound, ""},
		{"open", "PUT", base, `{"amount":100}`, http.StatusOK, ""},
		{"negative overwrite", "PUT", base, `{"amount":-1}`, http.StatusBadRequest, ""},
		{"balance", "GET", base, "", http.StatusOK, `100`},
		{"withdraw", "POST", base + "/withdraw", `{"amount":40}`, http.StatusOK, `60`},
		{"enough exact", "GET", base + "/enough?amount=60", "", http.StatusOK, `true`},
		{"not enough", "GET", base + "/enough?amount=60.01", "", http.StatusOK, `false`},
		{"negative withdraw", "POST", base + "/withdraw", `{"amount":-5}`, http.StatusBadRequest, ""},
		{"overdraw", "POST", base + "/withdraw", `{"amount":61}`, http.StatusConflict, ""},
		{"zero deposit", "POST", base + "/deposit", `{"amount":0}`, http.StatusOK, ""},
		{"deposit", "POST", base + "/deposit", `{"amount":2.5}`, http.StatusOK, `62.5`},
		{"missing amount", "POST", base + "/deposit", `{}`, http.StatusUnprocessableEntity, ""},
		{"bad amount query", "GET", base + "/enough?amount=lots", "", http.StatusUnprocessableEntity, ""},
		{"delete", "DELETE", base, "", http.StatusOK, ""},
		{"deleted", "GET", base, "", http.StatusNotFound, ""},
		{"bad subject", "GET", "/api/v1/subjects/nope/balances/gold", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, code, res.Error)

			if code >= 400 {
				assert.Equal(t, "ERROR", res.Status)
				assert.NotEmpty(t, res.Error)
				return
			}
			assert.Equal(t, "OK", res.Status)
			if tt.wantValue != "" {
				assert.JSONEq(t, tt.wantValue, string(res.Value))
			}
		})
	}
}

func TestTransferRoute(t *testing.T) {
	h, services := newTestServer(t)
	ctx := context.Background()
	from, to := uuid.New(), uuid.New()
	require.True(t, services.Transactions.SetAll(ctx, []domain.Transaction{
		domain.NewTransaction(from, "gold", 10),
		domain.NewTransaction(to, "gold", 0),
	}).IsOK())

	body := `{"from":"` + from.String() + `","to":"` + to.String() + `","currency":"gold","amount":4}`
	code, _ := do(t, h, "POST", "/api/v1/transfers", body)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, 6.0, services.Ledger.Balance(ctx, from, "gold").OrElse(-1))
	assert.Equal(t, 4.0, services.Ledger.Balance(ctx, to, "gold").OrElse(-1))

	code, res := do(t, h, "POST", "/api/v1/transfers", `{"to":"`+to.String()+`","currency":"gold","amount":4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "ERROR", res.Status)
}

func TestCurrencyRoutes(t *testing.T) {
	h, _ := newTestServer(t)

	code, res := do(t, h, "PUT", "/api/v1/currencies/gold", `{"display_name":"Gold","symbol":"G","abbreviation":"GLD"}`)
	require.Equal(t, http.StatusCreated, code, res.Error)

	code, res = do(t, h, "PUT", "/api/v1/currencies/gold", `{"display_name":"Gold coin"}`)
	require.Equal(t, http.StatusOK, code, res.Error)
	var change struct {
		Currency map[string]string `json:"currency"`
		Previous map[string]string `json:"previous"`
	}
	require.NoError(t, json.Unmarshal(res.Value, &change))
	assert.Equal(t, "Gold", change.Previous["display_name"])
	assert.Equal(t, "Gold coin", change.Currency["display_name"])
	assert.Equal(t, "G", change.Currency["symbol"])

	code, _ = do(t, h, "PUT", "/api/v1/currencies/gold", `{"abbreviation":"GOLD"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = do(t, h, "GET", "/api/v1/currencies", "")
	require.Equal(t, http.StatusOK, code)
	var all []map[string]string
	require.NoError(t, json.Unmarshal(res.Value, &all))
	require.Len(t, all, 1)
	assert.Equal(t, "GLD", all[0]["abbreviation"])

	code, _ = do(t, h, "DELETE", "/api/v1/currencies/gold", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, "GET", "/api/v1/currencies/gold", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, res = do(t, h, "GET", "/api/v1/currencies", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, res.Value, "no currencies renders without a value")
}

func TestSubjectRoutesAndJoins(t *testing.T) {
	h, services := newTestServer(t)
	ctx := context.Background()
	id := uuid.New()

	code, res := do(t, h, "PUT", "/api/v1/subjects/"+id.String(), `{"nickname":"steve"}`)
	require.Equal(t, http.StatusCreated, code, res.Error)

	code, res = do(t, h, "PUT", "/api/v1/subjects/"+id.String(), `{"nickname":"alex"}`)
	require.Equal(t, http.StatusOK, code, res.Error)
	var change subjectChange
	require.NoError(t, json.Unmarshal(res.Value, &change))
	assert.Equal(t, "steve", change.PreviousNickname)
	assert.Equal(t, "alex", change.Subject.Nickname().OrElse(""))

	require.True(t, services.Transactions.Set(ctx, domain.NewTransaction(id, "gold", 1)).IsOK())

	code, res = do(t, h, "GET", "/api/v1/subjects/"+id.String()+"/currencies", "")
	require.Equal(t, http.StatusOK, code)
	var currencies []domain.Currency
	require.NoError(t, json.Unmarshal(res.Value, &currencies))
	require.Len(t, currencies, 1)
	assert.Equal(t, "gold", currencies[0].Name())

	code, res = do(t, h, "GET", "/api/v1/currencies/gold/subjects", "")
	require.Equal(t, http.StatusOK, code)
	var subjects []domain.Subject
	require.NoError(t, json.Unmarshal(res.Value, &subjects))
	require.Len(t, subjects, 1)
	assert.Equal(t, id, subjects[0].ID())

	code, _ = do(t, h, "DELETE", "/api/v1/subjects/"+id.String(), "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, "GET", "/api/v1/subjects/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsRoute(t *testing.T) {
	h, _ := newTestServer(t)

	code, res := do(t, h, "GET", "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, code)

	var summary struct {
		Application utils.Metrics `json:"application"`
	}
	require.NoError(t, json.Unmarshal(res.Value, &summary))
	assert.Positive(t, summary.Application.Goroutines)
}
