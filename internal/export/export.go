// Package export fetches the gear inventory and writes it, together with the
// obfuscated account key, to the output artifact.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/s3gear/s3gear/internal/splatnet"
	"github.com/s3gear/s3gear/pkg/gearkey"
)

// DefaultFileName is the artifact written when no output path is given.
const DefaultFileName = "gears.json"

// Querier runs one authenticated persisted query. session.Manager is the real
// implementation.
type Querier interface {
	Query(ctx context.Context, queryID string, variables any) (json.RawMessage, error)
}

// Document is the output artifact. The key fields sit at the top level next
// to the raw equipment response.
type Document struct {
	gearkey.Key
	Timestamp int64           `json:"timestamp"`
	Gear      json.RawMessage `json:"gear"`
}

// Exporter builds a Document from two backend queries.
type Exporter struct {
	client Querier
	logger *slog.Logger

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(client Querier, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Exporter{client: client, logger: logger, nowFunc: time.Now}
}

// Run identifies the account from its newest battle, derives the obfuscation
// key and fetches the equipment list.
func (e *Exporter) Run(ctx context.Context) (*Document, error) {
	history, err := e.client.Query(ctx, splatnet.LatestBattleHistoriesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("export: fetching battle history: %w", err)
	}

	accountID, err := splatnet.AccountID(history)
	if err != nil {
		return nil, fmt.Errorf("export: identifying account: %w", err)
	}

	key := gearkey.Derive(accountID)
	timestamp := e.nowFunc().Unix()

	e.logger.Debug("derived gear key", slog.Uint64("h", uint64(key.Hash)))

	gear, err := e.client.Query(ctx, splatnet.EquipmentsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("export: fetching equipment: %w", err)
	}

	e.logger.Info("fetched equipment", slog.Int("bytes", len(gear)))

	return &Document{Key: key, Timestamp: timestamp, Gear: gear}, nil
}

// Encode renders doc the way it is written to disk: four-space indent, no
// HTML escaping.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")

	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("export: encoding document: %w", err)
	}

	return buf.Bytes(), nil
}
