package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditAction classifies the mutation being audited.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionSale   AuditAction = "sale"
	AuditActionRefund AuditAction = "refund"
)

// Context keys handlers may set to enrich the audit entry.
const (
	ContextKeyAuditResourceType = "audit_resource_type"
	ContextKeyAuditResourceID   = "audit_resource_id"
	ContextKeyAuditMetadata     = "audit_metadata"
)

// AuditEntry is a single audit trail record.
type AuditEntry struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"user_id,omitempty"`
	UserRole     string                 `json:"user_role,omitempty"`
	Action       AuditAction            `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	StatusCode   int                    `json:"status_code"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditConfig holds configuration for the audit middleware.
type AuditConfig struct {
	// DB receives the audit trail. Nil disables persistence; entries
	// are still collected in test mode.
	DB            *pgxpool.Pool
	BufferSize    int
	FlushInterval time.Duration
	BatchSize     int
	// SkipPaths lists path prefixes excluded from auditing.
	SkipPaths []string
	// SkipMethods lists HTTP methods excluded from auditing.
	SkipMethods []string
}

// DefaultAuditConfig returns defaults that audit every mutating request.
func DefaultAuditConfig(db *pgxpool.Pool) *AuditConfig {
	return &AuditConfig{
		DB:            db,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		BatchSize:     100,
		SkipPaths:     []string{"/health", "/metrics"},
		SkipMethods:   []string{"GET", "HEAD", "OPTIONS"},
	}
}

// AuditLogger buffers audit entries and writes them in batches off the
// request path.
type AuditLogger struct {
	config    *AuditConfig
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	ctx       context.Context
	closeOnce sync.Once

	testMode    bool
	testEntries []*AuditEntry
	testMu      sync.Mutex
}

// NewAuditLogger starts the background flush worker.
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	al := &AuditLogger{
		config: config,
		buffer: make(chan *AuditEntry, config.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	al.wg.Add(1)
	go al.worker()
	return al
}

// Log enqueues an entry without blocking. Entries are dropped when the
// buffer is full; the audit trail must never stall a sale.
func (al *AuditLogger) Log(entry *AuditEntry) {
	select {
	case al.buffer <- entry:
	default:
	}
}

// Close flushes remaining entries and stops the worker.
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		al.cancel()
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

// SetTestMode collects entries in memory instead of writing to the DB.
func (al *AuditLogger) SetTestMode(enabled bool) {
	al.testMu.Lock()
	defer al.testMu.Unlock()
	al.testMode = enabled
	if enabled {
		al.testEntries = make([]*AuditEntry, 0)
	}
}

// TestEntries returns entries collected in test mode.
func (al *AuditLogger) TestEntries() []*AuditEntry {
	al.testMu.Lock()
	defer al.testMu.Unlock()
	result := make([]*AuditEntry, len(al.testEntries))
	copy(result, al.testEntries)
	return result
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)
	flush := func() {
		if len(batch) > 0 {
			al.flush(batch)
			batch = make([]*AuditEntry, 0, al.config.BatchSize)
		}
	}

	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-al.ctx.Done():
			// Drain whatever is still buffered before the final flush.
			for {
				select {
				case entry, ok := <-al.buffer:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (al *AuditLogger) flush(entries []*AuditEntry) {
	al.testMu.Lock()
	if al.testMode {
		al.testEntries = append(al.testEntries, entries...)
		al.testMu.Unlock()
		return
	}
	al.testMu.Unlock()

	if al.config.DB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const query = `
		INSERT INTO audit_logs (
			id, user_id, user_role, action, resource_type, resource_id,
			ip_address, status_code, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, entry := range entries {
		metadataJSON, _ := json.Marshal(entry.Metadata)
		if string(metadataJSON) == "null" {
			metadataJSON = []byte("{}")
		}
		// Errors are swallowed: auditing never fails the request path.
		_, _ = al.config.DB.Exec(ctx, query,
			entry.ID, entry.UserID, entry.UserRole, string(entry.Action),
			entry.ResourceType, entry.ResourceID,
			entry.IPAddress, entry.StatusCode, metadataJSON, entry.CreatedAt,
		)
	}
}

// AuditMiddleware records every mutating request after the handler runs.
func AuditMiddleware(logger *AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		config := logger.config

		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}
		for _, method := range config.SkipMethods {
			if c.Request.Method == method {
				c.Next()
				return
			}
		}

		startTime := time.Now().UTC()
		c.Next()

		entry := &AuditEntry{
			ID:         uuid.New().String(),
			CreatedAt:  startTime,
			StatusCode: c.Writer.Status(),
			IPAddress:  c.ClientIP(),
		}
		if userID, ok := GetUserID(c); ok && userID != "" {
			entry.UserID = &userID
		}
		if role, ok := GetRole(c); ok {
			entry.UserRole = role
		}

		entry.Action = actionFor(c.Request.Method, c.Request.URL.Path)
		entry.ResourceType, entry.ResourceID = resourceFor(c.Request.URL.Path)

		if rt, exists := c.Get(ContextKeyAuditResourceType); exists {
			entry.ResourceType = rt.(string)
		}
		if rid, exists := c.Get(ContextKeyAuditResourceID); exists {
			if s, ok := rid.(string); ok && s != "" {
				entry.ResourceID = &s
			}
		}
		if meta, exists := c.Get(ContextKeyAuditMetadata); exists {
			entry.Metadata = meta.(map[string]interface{})
		}

		logger.Log(entry)
	}
}

func actionFor(method, path string) AuditAction {
	switch {
	case strings.HasSuffix(path, "/refund"):
		return AuditActionRefund
	case strings.Contains(path, "/sales") && method == "POST":
		return AuditActionSale
	case method == "POST":
		return AuditActionCreate
	case method == "PUT", method == "PATCH":
		return AuditActionUpdate
	case method == "DELETE":
		return AuditActionDelete
	default:
		return AuditActionUpdate
	}
}

// resourceFor extracts the resource type and id from paths shaped like
// /api/v1/<resource>/<id>[/...].
func resourceFor(path string) (string, *string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	// Drop the /api/v1 prefix when present.
	if len(parts) >= 2 && parts[0] == "api" {
		parts = parts[2:]
	}
	if len(parts) == 0 {
		return "", nil
	}
	resourceType := parts[0]
	if len(parts) >= 2 && parts[1] != "" {
		id := parts[1]
		return resourceType, &id
	}
	return resourceType, nil
}
