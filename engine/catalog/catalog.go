// Package catalog tracks source objects and their ingestion status, and
// holds the persisted assistant settings both processes read at startup.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neo4jCatalog stores Source nodes and a single Setting node.
type Neo4jCatalog struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// New creates a catalog on an existing driver.
func New(driver neo4j.DriverWithContext) *Neo4jCatalog {
	return &Neo4jCatalog{driver: driver}
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (c *Neo4jCatalog) session(ctx context.Context) runner {
	if c.newSession != nil {
		return c.newSession(ctx)
	}
	return &sessionAdapter{sess: c.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// RegisterSource records a newly submitted source with pending status.
func (c *Neo4jCatalog) RegisterSource(ctx context.Context, src domain.SourceObject) error {
	sess := c.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MERGE (s:Source {id: $id})
		 SET s.user_id = $user_id, s.kind = $kind, s.location = $location,
		     s.storage_path = $storage_path, s.name = $name,
		     s.status = $status, s.updated_at = $now`,
		map[string]any{
			"id":           src.ID,
			"user_id":      src.UserID,
			"kind":         string(src.Kind),
			"location":     src.Location,
			"storage_path": src.StoragePath,
			"name":         src.Name,
			"status":       string(domain.StatusPending),
			"now":          time.Now().UTC(),
		})
	if err != nil {
		return fmt.Errorf("catalog: register source: %w", err)
	}
	return nil
}

// SetStatus records a source's ingestion status. The node is merged so a
// status arriving before RegisterSource still lands.
func (c *Neo4jCatalog) SetStatus(ctx context.Context, sourceID string, kind domain.SourceKind, status domain.IngestStatus) error {
	sess := c.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MERGE (s:Source {id: $id})
		 SET s.kind = $kind, s.status = $status, s.updated_at = $now`,
		map[string]any{
			"id":     sourceID,
			"kind":   string(kind),
			"status": string(status),
			"now":    time.Now().UTC(),
		})
	if err != nil {
		return fmt.Errorf("catalog: set status: %w", err)
	}
	return nil
}

// Status reads a source's current ingestion status.
func (c *Neo4jCatalog) Status(ctx context.Context, sourceID string) (domain.IngestStatus, error) {
	sess := c.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		"MATCH (s:Source {id: $id}) RETURN s.status",
		map[string]any{"id": sourceID})
	if err != nil {
		return "", fmt.Errorf("catalog: read status: %w", err)
	}
	if !res.Next(ctx) {
		return "", fmt.Errorf("catalog: source %s: %w", sourceID, domain.ErrNotFound)
	}
	status, _ := res.Record().Values[0].(string)
	return domain.IngestStatus(status), nil
}

// SaveBotMode persists the assistant-enabled flag.
func (c *Neo4jCatalog) SaveBotMode(ctx context.Context, enabled bool) error {
	sess := c.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MERGE (s:Setting {id: "bot_mode"}) SET s.enabled = $enabled, s.updated_at = $now`,
		map[string]any{"enabled": enabled, "now": time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("catalog: save bot mode: %w", err)
	}
	return nil
}

// LoadBotMode reads the persisted assistant-enabled flag. A missing
// setting means the assistant is enabled.
func (c *Neo4jCatalog) LoadBotMode(ctx context.Context) (bool, error) {
	sess := c.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (s:Setting {id: "bot_mode"}) RETURN s.enabled`, nil)
	if err != nil {
		return false, fmt.Errorf("catalog: load bot mode: %w", err)
	}
	if !res.Next(ctx) {
		return true, nil
	}
	enabled, _ := res.Record().Values[0].(bool)
	return enabled, nil
}
