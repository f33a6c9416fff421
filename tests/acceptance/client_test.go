package acceptance

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/services"
	"github.com/carrigar/order-crm-api/tests/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// apiClient sends real HTTP requests to a test server
type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPIClient(t *testing.T, db *gorm.DB, cfg *config.Config, store services.FileStore) *apiClient {
	server := httptest.NewServer(testutil.NewRouter(db, cfg, store))
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

func (c *apiClient) send(req *http.Request) (*http.Response, []byte) {
	c.t.Helper()

	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, body
}

// do sends a JSON request as auth0ID ("" for anonymous) and decodes the envelope
func (c *apiClient) do(method, path, auth0ID string, body interface{}) (int, testutil.Envelope) {
	c.t.Helper()

	resp, raw := c.send(testutil.NewJSONRequest(method, c.server.URL+"/api/v1"+path, auth0ID, body))
	return resp.StatusCode, testutil.DecodeEnvelope(c.t, raw)
}

// mustDo is do that requires status and decodes data into out
func (c *apiClient) mustDo(method, path, auth0ID string, body interface{}, status int, out interface{}) {
	c.t.Helper()

	code, env := c.do(method, path, auth0ID, body)
	require.Equal(c.t, status, code, "%s %s: %s %s", method, path, env.Error.Code, env.Error.Message)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
}
