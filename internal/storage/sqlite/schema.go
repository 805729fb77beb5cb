package sqlite

// schemaStatements creates the five logical tables plus the
// FTS5 virtual table the embedded backend uses for full-text search, and
// the per-tenant, per-timestamp, per-state and per-next-review indices.
// The tags and concepts columns are not indexed.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS knowledge_nodes (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		content TEXT NOT NULL,
		summary TEXT,
		stability REAL NOT NULL DEFAULT 2.3065,
		difficulty REAL NOT NULL DEFAULT 5.0,
		state INTEGER NOT NULL DEFAULT 0,
		reps INTEGER NOT NULL DEFAULT 0,
		lapses INTEGER NOT NULL DEFAULT 0,
		last_review TEXT,
		next_review TEXT,
		storage_strength REAL NOT NULL DEFAULT 0,
		retrieval_strength REAL NOT NULL DEFAULT 0,
		retention_strength REAL NOT NULL DEFAULT 0,
		stability_factor REAL NOT NULL DEFAULT 1.0,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sentiment_intensity REAL NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 1.0,
		is_contradicted INTEGER NOT NULL DEFAULT 0,
		contradiction_ids TEXT,
		source_type TEXT NOT NULL DEFAULT 'conversation',
		source_platform TEXT,
		source_url TEXT,
		source_chain TEXT,
		people TEXT,
		concepts TEXT,
		events TEXT,
		tags TEXT,
		embedding TEXT,
		deleted_at TEXT,
		deleted_by TEXT,
		delete_reason TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_tenant ON knowledge_nodes(tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_created ON knowledge_nodes(tenant_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_state ON knowledge_nodes(tenant_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_next_review ON knowledge_nodes(tenant_id, next_review)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
		content, summary, content='knowledge_nodes', content_rowid='rowid'
	)`,

	`CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		metadata TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_people_tenant ON people(tenant_id)`,

	`CREATE TABLE IF NOT EXISTS graph_edges (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		edge_type TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 1.0,
		metadata TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(tenant_id, from_id, to_id, edge_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_tenant ON graph_edges(tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_from ON graph_edges(tenant_id, from_id)`,

	`CREATE TABLE IF NOT EXISTS intentions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		content TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		trigger_data TEXT,
		priority TEXT NOT NULL DEFAULT 'normal',
		status TEXT NOT NULL DEFAULT 'active',
		deadline TEXT,
		fulfilled_at TEXT,
		reminder_count INTEGER NOT NULL DEFAULT 0,
		tags TEXT,
		snoozed_until TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_intentions_tenant ON intentions(tenant_id)`,

	`CREATE TABLE IF NOT EXISTS metadata (
		tenant_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (tenant_id, key)
	)`,
}
