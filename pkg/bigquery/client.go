// Package bigquery streams settlement rows into the analytics dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/gcp"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errDatasetRequired = errors.New("bigquery dataset is required")
	errTableRequired   = errors.New("bigquery table name is required")
	errNotInitialized  = errors.New("bigquery client not initialized")
)

type Pinger interface {
	Ping(context.Context) error
}

// TableSpec describes a table the process writes to. Schema and
// PartitionField are only used when the table has to be created.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

type Client struct {
	client   *bigquery.Client
	dataset  *bigquery.Dataset
	cfg      config.BigQueryConfig
	logg     *logger.Logger
	mu       sync.Mutex
	verified map[string]struct{}
}

// NewClient dials BigQuery and checks that the dataset exists. Tables are
// verified separately through EnsureTable.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID, err := gcp.ProjectID(gcpCfg)
	if err != nil {
		return nil, err
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}

	raw, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{
		client:   raw,
		dataset:  raw.Dataset(datasetID),
		cfg:      cfg,
		logg:     logg,
		verified: map[string]struct{}{},
	}
	if err := c.checkDataset(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"project_id": projectID, "dataset": datasetID}), "bigquery client initialized")
	return c, nil
}

func (c *Client) checkDataset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(ctx); err != nil {
		if gcp.IsNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("check dataset %q: %w", c.dataset.DatasetID, err)
	}
	return nil
}

// EnsureTable confirms the wanted table exists. With auto-create enabled a
// missing table is created day-partitioned on want.PartitionField.
func (c *Client) EnsureTable(ctx context.Context, want TableSpec) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	name := strings.TrimSpace(want.Name)
	if name == "" {
		return errTableRequired
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	table := c.dataset.Table(name)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
	case !gcp.IsNotFound(err):
		return fmt.Errorf("check table %q: %w", name, err)
	case !c.cfg.AutoCreate || len(want.Schema) == 0:
		return fmt.Errorf("table %q does not exist", name)
	default:
		if err := table.Create(ctx, tableMetadata(want)); err != nil {
			return fmt.Errorf("create table %q: %w", name, err)
		}
		c.logg.Info(c.logg.WithField(ctx, "table", name), "bigquery table created")
	}

	c.mu.Lock()
	c.verified[name] = struct{}{}
	c.mu.Unlock()
	return nil
}

func tableMetadata(want TableSpec) *bigquery.TableMetadata {
	meta := &bigquery.TableMetadata{Schema: want.Schema}
	if want.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: want.PartitionField}
	}
	return meta
}

// Ping re-checks the dataset and every table EnsureTable accepted.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	if err := c.checkDataset(ctx); err != nil {
		return err
	}
	for _, name := range c.verifiedTables() {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			return fmt.Errorf("check table %q: %w", name, err)
		}
	}
	return nil
}

func (c *Client) verifiedTables() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.verified))
	for name := range c.verified {
		names = append(names, name)
	}
	return names
}

// Row is a struct row tagged with an insert ID. BigQuery drops rows whose
// insert ID it has already seen within its dedupe window.
type Row struct {
	InsertID string
	Value    any
}

// InsertRows streams rows into table. Rows without a value are skipped.
func (c *Client) InsertRows(ctx context.Context, table string, rows []Row) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableRequired
	}
	savers := toSavers(rows)
	if len(savers) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, savers)
}

// SettlementTable returns the configured settlement events table.
func (c *Client) SettlementTable() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.cfg.SettlementTable)
}

func toSavers(rows []Row) []*bigquery.StructSaver {
	savers := make([]*bigquery.StructSaver, 0, len(rows))
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		savers = append(savers, &bigquery.StructSaver{Struct: row.Value, InsertID: row.InsertID})
	}
	return savers
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
