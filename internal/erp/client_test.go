package erp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-request-board/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.ERPConfig{
		BaseURL:              server.URL,
		Username:             "ws@example.com",
		Password:             "secret",
		TimeoutSeconds:       5,
		ContainerBySerialID:  4619,
		ContainersByPartID:   8566,
		ContainersByMasterID: 4390,
		MasterUnitLookupID:   233972,
		ProdLocationsID:      18120,
	}
	return NewClient(cfg), server
}

func tableResponse(columns []string, rows [][]any) map[string]any {
	return map[string]any{
		"tables": []map[string]any{
			{"columns": columns, "rows": rows},
		},
	}
}

func TestContainersByPart(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		json.NewEncoder(w).Encode(tableResponse(
			[]string{"Serial_No", "Part_No", "Location", "Add_Date"},
			[][]any{
				{"SN-2", "P-1", "A-02", "2024-02-02"},
				{"SN-1", "P-1", "A-01", "2024-01-01"},
				{"SN-3", "P-1", "J-B3", "2024-01-15"},
			},
		))
	})

	rows, err := client.ContainersByPart(context.Background(), "P-1", map[string]struct{}{"SN-1": {}})
	require.NoError(t, err)

	assert.Equal(t, "/8566/execute", gotPath)
	assert.Equal(t, map[string]any{"Part_No": "P-1"}, gotPayload["inputs"])

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("ws@example.com:secret"))
	assert.Equal(t, wantAuth, gotAuth)

	// Staging rack J-B3 is dropped, remaining rows sorted by add date.
	require.Len(t, rows, 2)
	assert.Equal(t, "SN-1", rows[0].Str("Serial_No"))
	assert.Equal(t, true, rows[0]["isRequested"])
	assert.Equal(t, "SN-2", rows[1].Str("Serial_No"))
	assert.Equal(t, false, rows[1]["isRequested"])
}

func TestContainerBySerial_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	_, err := client.ContainerBySerial(context.Background(), "SN-1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 418"))
}

func TestMasterUnitKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"outputs": map[string]any{"Master_Unit_Key": "MUK-77"},
		})
	})

	key, err := client.MasterUnitKey(context.Background(), "MU-7")
	require.NoError(t, err)
	assert.Equal(t, "MUK-77", key)
}

func TestMasterUnitKey_Missing(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"outputs": map[string]any{}})
	})

	_, err := client.MasterUnitKey(context.Background(), "MU-404")
	assert.Error(t, err)
}

func TestProductionLocations(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tableResponse(
			[]string{"Location"},
			[][]any{{"PROD-01"}, {"PROD-02"}, {nil}},
		))
	})

	locations, err := client.ProductionLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"PROD-01", "PROD-02"}, locations)
}
