package relay_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/slatewallet/slatewallet/pkg/relay"
	"github.com/slatewallet/slatewallet/pkg/slate"
	"github.com/slatewallet/slatewallet/pkg/slatepack"
)

func newTestRelay(t *testing.T, handler http.HandlerFunc) *relay.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return relay.NewClient(server.URL, 5*time.Second)
}

func TestTip(t *testing.T) {
	client := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/chain/tip", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]uint64{"height": 123_456})
	})

	height, err := client.Tip(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(123_456), height)

	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestPostAndFetchSlates(t *testing.T) {
	const address = "grin1testaddress"
	var stored relay.Envelope

	client := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/slates":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&stored))
			stored.ID = "envelope-1"
			json.NewEncoder(w).Encode(stored)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/slates/"+address:
			json.NewEncoder(w).Encode([]relay.Envelope{stored})
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/slates/envelope-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	id, err := client.PostSlate(ctx, address, "BEGINSLATEPACK. x. ENDSLATEPACK.")
	require.NoError(t, err)
	require.Equal(t, "envelope-1", id)

	envelopes, err := client.FetchSlates(ctx, address)
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	require.Equal(t, address, envelopes[0].Recipient)
	require.Equal(t, "BEGINSLATEPACK. x. ENDSLATEPACK.", envelopes[0].Slatepack)

	require.NoError(t, client.AckSlate(ctx, id))
}

func TestBroadcast(t *testing.T) {
	sig := [64]byte{1}
	finalized := &slate.Slate{
		ID:              uuid.New(),
		State:           slate.StateStandard3,
		Amount:          1_000_000_000,
		Fee:             23_000_000,
		KernelSignature: &sig,
	}

	var received string
	client := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/txs", r.URL.Path)
		var body struct {
			Tx string `json:"tx"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received = body.Tx
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.Broadcast(context.Background(), finalized))

	raw, err := hex.DecodeString(received)
	require.NoError(t, err)
	decoded, err := slatepack.DecodeBinary(raw)
	require.NoError(t, err)
	require.Equal(t, finalized.ID, decoded.ID)
	require.Equal(t, slate.StateStandard3, decoded.State)
}

func TestBroadcastRejectsUnfinalized(t *testing.T) {
	client := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	err := client.Broadcast(context.Background(), &slate.Slate{
		ID:    uuid.New(),
		State: slate.StateStandard2,
	})
	var incomplete *slate.KernelIncompleteError
	require.ErrorAs(t, err, &incomplete)
}

func TestOutputState(t *testing.T) {
	var commitment [33]byte
	commitment[0] = 0x09

	client := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/outputs/"+hex.EncodeToString(commitment[:]), r.URL.Path)
		json.NewEncoder(w).Encode(relay.OutputState{
			Commitment: hex.EncodeToString(commitment[:]),
			Spent:      false,
			Height:     42,
		})
	})

	state, err := client.OutputState(context.Background(), commitment)
	require.NoError(t, err)
	require.False(t, state.Spent)
	require.Equal(t, uint64(42), state.Height)
}

func TestStatusError(t *testing.T) {
	client := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such address", http.StatusNotFound)
	})

	_, err := client.FetchSlates(context.Background(), "grin1unknown")
	var statusErr *relay.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
