package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyvault/trader/pkg/aptos"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeNode serves the view and account-resource endpoints from a key ->
// response map (view function name or resource type) and reports every
// submitted hash as executed.
func fakeNode(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	notFound := func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Resource not found","error_code":"resource_not_found"}`))
	}

	mux.HandleFunc("/v1/view", func(w http.ResponseWriter, r *http.Request) {
		var req aptos.ViewRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		response, ok := responses[req.Function]
		if !ok {
			notFound(w)
			return
		}
		w.Write([]byte(response))
	})

	mux.HandleFunc("/v1/accounts/", func(w http.ResponseWriter, r *http.Request) {
		_, resourceType, ok := strings.Cut(r.URL.Path, "/resource/")
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			notFound(w)
			return
		}
		response, found := responses[resourceType]
		if !found {
			notFound(w)
			return
		}
		w.Write([]byte(response))
	})

	mux.HandleFunc("/v1/transactions/by_hash/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"user_transaction","success":true,"vm_status":"Executed successfully"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type captureSubmitter struct {
	payload aptos.EntryFunctionPayload
	hash    string
	err     error
}

func (s *captureSubmitter) SignAndSubmitTransaction(ctx context.Context, payload aptos.EntryFunctionPayload) (string, error) {
	s.payload = payload
	if s.err != nil {
		return "", s.err
	}
	return s.hash, nil
}

func newTestVaultClient(t *testing.T, responses map[string]string, submitter TransactionSubmitter) *Client {
	t.Helper()
	server := fakeNode(t, responses)
	node := aptos.NewClient(server.URL, quietLogger())
	return NewClient(Config{ModuleAddress: "0xcafe"}, node, submitter, quietLogger())
}

func TestGetVaultInfo(t *testing.T) {
	client := newTestVaultClient(t, map[string]string{
		"0xcafe::perps_vault::get_vault_info": `["0xTRADER","1000000000","10",true]`,
	}, nil)

	info, err := client.GetVaultInfo(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xTRADER", info.TraderFollowing)
	assert.Equal(t, "1000000000", info.Collateral)
	assert.Equal(t, "10", info.MaxLeverage)
	assert.True(t, info.IsActive)
}

func TestGetVaultInfoNotFound(t *testing.T) {
	client := newTestVaultClient(t, map[string]string{}, nil)

	_, err := client.GetVaultInfo(context.Background(), "0xnobody")
	assert.ErrorIs(t, err, ErrVaultNotFound)
}

func TestVaultExists(t *testing.T) {
	client := newTestVaultClient(t, map[string]string{
		"0xcafe::perps_vault::PerpsVault": `{"type":"0xcafe::perps_vault::PerpsVault","data":{"collateral":{"value":"1000000000"}}}`,
	}, nil)

	exists, err := client.VaultExists(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestVaultExistsMissingResource(t *testing.T) {
	client := newTestVaultClient(t, map[string]string{}, nil)

	exists, err := client.VaultExists(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVaultExistsNodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal error","error_code":"internal_error"}`))
	}))
	t.Cleanup(server.Close)

	node := aptos.NewClient(server.URL, quietLogger())
	client := NewClient(Config{ModuleAddress: "0xcafe"}, node, nil, quietLogger())

	_, err := client.VaultExists(context.Background(), "0xabc")
	require.Error(t, err)
	assert.False(t, aptos.IsNotFound(err))
}

func TestGetTraderStats(t *testing.T) {
	client := newTestVaultClient(t, map[string]string{
		"0xcafe::perps_vault::get_trader_stats": `["12","340","6725"]`,
	}, nil)

	stats, err := client.GetTraderStats(context.Background(), "0xTRADER")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), stats.TotalFollowers)
	assert.Equal(t, uint64(340), stats.TotalPositions)
	assert.Equal(t, uint64(6725), stats.WinRate)
	assert.Equal(t, "67.25%", FormatWinRate(stats.WinRate))
}

func TestGetPositionCount(t *testing.T) {
	client := newTestVaultClient(t, map[string]string{
		"0xcafe::perps_vault::get_position_count": `["3"]`,
	}, nil)

	count, err := client.GetPositionCount(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestCreateVault(t *testing.T) {
	submitter := &captureSubmitter{hash: "0xhash"}
	client := newTestVaultClient(t, map[string]string{}, submitter)

	hash, err := client.CreateVault(context.Background(), "0xTRADER", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)

	assert.Equal(t, "0xcafe::perps_vault::create_vault", submitter.payload.Function)
	require.Len(t, submitter.payload.Arguments, 3)
	assert.Equal(t, "0xTRADER", submitter.payload.Arguments[0])
	assert.Equal(t, "1000000000", submitter.payload.Arguments[1])
	assert.Equal(t, "10", submitter.payload.Arguments[2])
}

func TestAddCollateralConvertsToOctas(t *testing.T) {
	submitter := &captureSubmitter{hash: "0xhash"}
	client := newTestVaultClient(t, map[string]string{}, submitter)

	_, err := client.AddCollateral(context.Background(), 2.5)
	require.NoError(t, err)

	assert.Equal(t, "0xcafe::perps_vault::add_collateral", submitter.payload.Function)
	require.Len(t, submitter.payload.Arguments, 1)
	assert.Equal(t, "250000000", submitter.payload.Arguments[0])
}

func TestMutatingCallWithoutSubmitter(t *testing.T) {
	client := newTestVaultClient(t, map[string]string{}, nil)

	_, err := client.ToggleVaultStatus(context.Background())
	assert.ErrorIs(t, err, ErrNoSubmitter)
}
