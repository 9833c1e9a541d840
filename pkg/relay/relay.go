// Package relay implements the REST client for a slatepack relay: the
// service wallets use to drop armored slates for a recipient address, poll
// for slates addressed to them, broadcast finalized transactions and watch
// output confirmations.
package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slatewallet/slatewallet/pkg/slate"
	"github.com/slatewallet/slatewallet/pkg/slatepack"
)

// ErrRelayUnreachable ...
var ErrRelayUnreachable = errors.New("relay is unreachable")

// StatusError reports a non-2xx relay response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay responded %d: %s", e.StatusCode, e.Body)
}

// Envelope is one relayed slatepack, as stored by the relay for a
// recipient.
type Envelope struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender,omitempty"`
	Recipient string    `json:"recipient"`
	Slatepack string    `json:"slatepack"`
	CreatedAt time.Time `json:"created_at"`
}

// OutputState is the chain view of a single commitment.
type OutputState struct {
	Commitment string `json:"commitment"`
	Spent      bool   `json:"spent"`
	Height     uint64 `json:"height"`
}

// Client talks to one relay endpoint.
type Client struct {
	apiURL string
	client *http.Client
}

// NewClient returns a relay client for the given base URL.
func NewClient(apiURL string, timeout time.Duration) *Client {
	return &Client{
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

// HealthCheck verifies the relay answers before the wallet starts an
// exchange over it.
func (c *Client) HealthCheck(ctx context.Context) error {
	var tip struct {
		Height uint64 `json:"height"`
	}
	if err := c.get(ctx, "/v1/chain/tip", &tip); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// Tip returns the current chain height as seen by the relay.
func (c *Client) Tip(ctx context.Context) (uint64, error) {
	var tip struct {
		Height uint64 `json:"height"`
	}
	if err := c.get(ctx, "/v1/chain/tip", &tip); err != nil {
		return 0, err
	}
	return tip.Height, nil
}

// PostSlate drops an armored slatepack for a recipient address and returns
// the relay-assigned envelope id.
func (c *Client) PostSlate(ctx context.Context, recipient, armored string) (string, error) {
	body := Envelope{Recipient: recipient, Slatepack: armored}
	var posted Envelope
	if err := c.post(ctx, "/v1/slates", body, &posted); err != nil {
		return "", err
	}
	return posted.ID, nil
}

// FetchSlates polls the envelopes addressed to the given slatepack address.
func (c *Client) FetchSlates(ctx context.Context, address string) ([]Envelope, error) {
	var envelopes []Envelope
	if err := c.get(ctx, "/v1/slates/"+address, &envelopes); err != nil {
		return nil, err
	}
	return envelopes, nil
}

// AckSlate removes a processed envelope from the relay.
func (c *Client) AckSlate(ctx context.Context, id string) error {
	return c.delete(ctx, "/v1/slates/"+id)
}

// Broadcast submits a finalized slate's transaction to the chain through
// the relay.
func (c *Client) Broadcast(ctx context.Context, finalized *slate.Slate) error {
	if finalized.KernelSignature == nil {
		return &slate.KernelIncompleteError{Reason: "broadcasting unfinalized slate"}
	}
	payload, err := slatepack.EncodeBinary(finalized)
	if err != nil {
		return err
	}
	body := struct {
		Tx string `json:"tx"`
	}{Tx: hex.EncodeToString(payload)}
	return c.post(ctx, "/v1/txs", body, nil)
}

// OutputState looks up whether a commitment is in the UTXO set and at what
// height it was created.
func (c *Client) OutputState(ctx context.Context, commitment [33]byte) (*OutputState, error) {
	var state OutputState
	if err := c.get(ctx, "/v1/outputs/"+hex.EncodeToString(commitment[:]), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rs, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	defer rs.Body.Close()

	raw, err := io.ReadAll(rs.Body)
	if err != nil {
		return err
	}
	if rs.StatusCode < 200 || rs.StatusCode >= 300 {
		return &StatusError{StatusCode: rs.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
