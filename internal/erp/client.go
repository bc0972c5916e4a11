// Package erp talks to the plant ERP's datasource API. Every lookup is
// a POST of {"inputs": {...}} to <base>/<datasource id>/execute; the
// response is a tables/columns/rows envelope.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"container-request-board/config"
	"container-request-board/internal/metrics"
)

// Row is one record from a datasource result, keyed by column name.
type Row map[string]any

// datasourceResponse models the envelope the datasource API returns.
type datasourceResponse struct {
	Tables []struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	} `json:"tables"`
	Outputs map[string]any `json:"outputs"`
}

// Client executes datasource lookups against the ERP.
type Client struct {
	cfg     *config.ERPConfig
	client  *http.Client
	metrics *metrics.Metrics
}

// NewClient creates an ERP client from the configuration.
func NewClient(cfg *config.ERPConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		metrics: metrics.New(),
	}
}

// execute runs one datasource call and returns the rows of the first
// result table.
func (c *Client) execute(ctx context.Context, datasourceID int, inputs map[string]any) (*datasourceResponse, error) {
	payload, err := json.Marshal(map[string]any{"inputs": inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal datasource inputs: %w", err)
	}

	url := fmt.Sprintf("%s/%d/execute", strings.TrimRight(c.cfg.BaseURL, "/"), datasourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ERPCall("error", time.Since(start))
		return nil, fmt.Errorf("datasource %d request failed: %w", datasourceID, err)
	}
	defer resp.Body.Close()
	c.metrics.ERPCall(fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("datasource %d returned status %d", datasourceID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read datasource %d response: %w", datasourceID, err)
	}

	var dsResp datasourceResponse
	if err := json.Unmarshal(body, &dsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal datasource %d response: %w", datasourceID, err)
	}
	return &dsResp, nil
}

func (r *datasourceResponse) firstTableRows() []Row {
	if len(r.Tables) == 0 {
		return nil
	}
	table := r.Tables[0]
	rows := make([]Row, 0, len(table.Rows))
	for _, raw := range table.Rows {
		row := make(Row, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(raw) {
				row[col] = raw[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Str reads a column as a string, tolerating missing or null cells.
func (r Row) Str(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// ContainerBySerial looks up a single container by serial number.
func (c *Client) ContainerBySerial(ctx context.Context, serialNo string) ([]Row, error) {
	resp, err := c.execute(ctx, c.cfg.ContainerBySerialID, map[string]any{"Serial_No": serialNo})
	if err != nil {
		return nil, err
	}
	return resp.firstTableRows(), nil
}

// stagingPrefix matches warehouse staging racks that must never be
// offered for pick-up.
const stagingPrefix = "J-B"

// ContainersByPart lists containers holding the given part, oldest
// first, with staging locations filtered out. Containers whose serial
// is in activeSerials are flagged as already requested.
func (c *Client) ContainersByPart(ctx context.Context, partNo string, activeSerials map[string]struct{}) ([]Row, error) {
	resp, err := c.execute(ctx, c.cfg.ContainersByPartID, map[string]any{"Part_No": partNo})
	if err != nil {
		return nil, err
	}
	return c.containerRows(resp, activeSerials), nil
}

// ContainersByMasterUnit lists the containers grouped under a master
// unit key.
func (c *Client) ContainersByMasterUnit(ctx context.Context, masterUnitKey string, activeSerials map[string]struct{}) ([]Row, error) {
	resp, err := c.execute(ctx, c.cfg.ContainersByMasterID, map[string]any{"Master_Unit_Key": masterUnitKey})
	if err != nil {
		return nil, err
	}
	return c.containerRows(resp, activeSerials), nil
}

// MasterUnitKey resolves a human-entered master unit number to the
// ERP's internal key.
func (c *Client) MasterUnitKey(ctx context.Context, masterUnitNo string) (string, error) {
	resp, err := c.execute(ctx, c.cfg.MasterUnitLookupID, map[string]any{"Master_Unit_No": masterUnitNo})
	if err != nil {
		return "", err
	}
	key, ok := resp.Outputs["Master_Unit_Key"]
	if !ok || key == nil {
		return "", fmt.Errorf("master unit %s not found", masterUnitNo)
	}
	return fmt.Sprintf("%v", key), nil
}

// ProductionLocations returns the locations classified as production
// storage inputs. Containers that arrive there are considered delivered.
func (c *Client) ProductionLocations(ctx context.Context) ([]string, error) {
	resp, err := c.execute(ctx, c.cfg.ProdLocationsID, map[string]any{"Location_Type": "Production Storage_IN"})
	if err != nil {
		return nil, err
	}
	var locations []string
	for _, row := range resp.firstTableRows() {
		if loc := row.Str("Location"); loc != "" {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

func (c *Client) containerRows(resp *datasourceResponse, activeSerials map[string]struct{}) []Row {
	rows := resp.firstTableRows()
	filtered := rows[:0]
	for _, row := range rows {
		if strings.HasPrefix(row.Str("Location"), stagingPrefix) {
			continue
		}
		_, requested := activeSerials[row.Str("Serial_No")]
		row["isRequested"] = requested
		filtered = append(filtered, row)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if a, b := filtered[i].Str("Add_Date"), filtered[j].Str("Add_Date"); a != b {
			return a < b
		}
		return filtered[i].Str("Serial_No") < filtered[j].Str("Serial_No")
	})
	return filtered
}
