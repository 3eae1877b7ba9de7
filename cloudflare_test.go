package ddns

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/netip"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cfBase        = "http://cf/client/v4"
	cfRecordsURL  = cfBase + "/zones/yyy/dns_records"
	cfRecordURL   = cfBase + "/zones/yyy/dns_records/record1"
	cfZonesURL    = cfBase + "/zones"
	cfRecordsCall = "GET " + cfRecordsURL
	cfPatchCall   = "PATCH " + cfRecordURL
)

func newTestCloudflare(t *testing.T, zoneID string) (*cloudflareProvider, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	cf, err := newCloudflareProvider("xxx", zoneID,
		cloudflare.BaseURL(cfBase),
		cloudflare.HTTPClient(&http.Client{Transport: mt}),
		cloudflare.UsingRateLimit(1000),
	)
	require.NoError(t, err)
	return cf, mt
}

func cfEnvelope(result any) map[string]any {
	n := 1
	if list, ok := result.([]map[string]any); ok {
		n = len(list)
	}
	return map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
		"result_info": map[string]any{
			"page":        1,
			"per_page":    100,
			"count":       n,
			"total_count": n,
			"total_pages": 1,
		},
	}
}

func cfRecord(content string) map[string]any {
	return map[string]any{
		"id":        "record1",
		"type":      "A",
		"name":      "game.example.com",
		"content":   content,
		"proxied":   false,
		"ttl":       600,
		"zone_id":   "yyy",
		"zone_name": "example.com",
	}
}

func TestCloudflareGetRecord(t *testing.T) {
	cf, mt := newTestCloudflare(t, "yyy")
	mt.RegisterResponder(http.MethodGet, cfRecordsURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "A", req.URL.Query().Get("type"))
		assert.Equal(t, "game.example.com", req.URL.Query().Get("name"))
		assert.Equal(t, "Bearer xxx", req.Header.Get("Authorization"))
		return httpmock.NewJsonResponse(http.StatusOK, cfEnvelope([]map[string]any{cfRecord("192.0.2.1")}))
	})

	rec, err := cf.GetRecord(context.Background(), "game.example.com")
	require.NoError(t, err)
	assert.Equal(t, Record{Data: "192.0.2.1", TTL: 600}, rec)
	assert.Equal(t, 1, mt.GetCallCountInfo()[cfRecordsCall])
}

func TestCloudflareGetRecordNotFound(t *testing.T) {
	cf, mt := newTestCloudflare(t, "yyy")
	mt.RegisterResponder(http.MethodGet, cfRecordsURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, cfEnvelope([]map[string]any{})))

	_, err := cf.GetRecord(context.Background(), "game.example.com")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCloudflareGetRecordAPIError(t *testing.T) {
	cf, mt := newTestCloudflare(t, "yyy")
	mt.RegisterResponder(http.MethodGet, cfRecordsURL,
		httpmock.NewJsonResponderOrPanic(http.StatusForbidden, map[string]any{
			"success":  false,
			"errors":   []map[string]any{{"code": 10000, "message": "Authentication error"}},
			"messages": []any{},
			"result":   nil,
		}))

	_, err := cf.GetRecord(context.Background(), "game.example.com")
	assert.ErrorIs(t, err, ErrRecordLookupFailed)
	assert.Equal(t, 1, mt.GetCallCountInfo()[cfRecordsCall], "requests must not be retried")
}

func TestCloudflareUpdateRecord(t *testing.T) {
	cf, mt := newTestCloudflare(t, "yyy")
	mt.RegisterResponder(http.MethodGet, cfRecordsURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, cfEnvelope([]map[string]any{cfRecord("192.0.2.1")})))
	mt.RegisterResponder(http.MethodPatch, cfRecordURL, func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		var params map[string]any
		require.NoError(t, json.Unmarshal(body, &params))
		assert.Equal(t, "192.0.2.2", params["content"])
		assert.Equal(t, "A", params["type"])
		assert.EqualValues(t, DefaultTTL, params["ttl"])
		return httpmock.NewJsonResponse(http.StatusOK, cfEnvelope(cfRecord("192.0.2.2")))
	})

	err := cf.UpdateRecord(context.Background(), "game.example.com", netip.MustParseAddr("192.0.2.2"))
	require.NoError(t, err)
	assert.Equal(t, 1, mt.GetCallCountInfo()[cfRecordsCall])
	assert.Equal(t, 1, mt.GetCallCountInfo()[cfPatchCall])
}

func TestCloudflareUpdateRejected(t *testing.T) {
	cf, mt := newTestCloudflare(t, "yyy")
	mt.RegisterResponder(http.MethodGet, cfRecordsURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, cfEnvelope([]map[string]any{cfRecord("192.0.2.1")})))
	mt.RegisterResponder(http.MethodPatch, cfRecordURL,
		httpmock.NewJsonResponderOrPanic(http.StatusBadRequest, map[string]any{
			"success":  false,
			"errors":   []map[string]any{{"code": 9005, "message": "Content for A record is invalid."}},
			"messages": []any{},
			"result":   nil,
		}))

	err := cf.UpdateRecord(context.Background(), "game.example.com", netip.MustParseAddr("192.0.2.2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateRejected)
	assert.Contains(t, err.Error(), "Content for A record is invalid.")
	assert.Equal(t, 1, mt.GetCallCountInfo()[cfPatchCall])
}

func TestCloudflareZoneLookup(t *testing.T) {
	cf, mt := newTestCloudflare(t, "")
	mt.RegisterResponder(http.MethodGet, cfZonesURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, cfEnvelope([]map[string]any{
			{"id": "zzz", "name": "example.com"},
			{"id": "yyy", "name": "game.example.com"},
			{"id": "nope", "name": "other.com"},
		})))
	mt.RegisterResponder(http.MethodGet, cfRecordsURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, cfEnvelope([]map[string]any{cfRecord("192.0.2.1")})))

	rec, err := cf.GetRecord(context.Background(), "game.example.com")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", rec.Data)
}

func TestCloudflareZoneLookupNoMatch(t *testing.T) {
	cf, mt := newTestCloudflare(t, "")
	mt.RegisterResponder(http.MethodGet, cfZonesURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, cfEnvelope([]map[string]any{
			{"id": "nope", "name": "ample.com"},
		})))

	_, err := cf.GetRecord(context.Background(), "game.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordLookupFailed)
	assert.Contains(t, err.Error(), "unable to find a zone")

	err = cf.UpdateRecord(context.Background(), "game.example.com", netip.MustParseAddr("192.0.2.2"))
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, "provider_write", ErrorKind(err))
}

func TestCloudflareUpdateRecordListFailure(t *testing.T) {
	cf, mt := newTestCloudflare(t, "yyy")
	mt.RegisterResponder(http.MethodGet, cfRecordsURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, cfEnvelope([]map[string]any{})))

	err := cf.UpdateRecord(context.Background(), "game.example.com", netip.MustParseAddr("192.0.2.2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, "provider_write", ErrorKind(err))
	assert.Zero(t, mt.GetCallCountInfo()[cfPatchCall])
}
