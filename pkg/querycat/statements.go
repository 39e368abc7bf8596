package querycat

// Builtin returns the full set of named statements the store package
// registers at startup. Splitting the inventory from the Catalog type
// keeps the mapping itself easy to diff and review independent of the
// cache's mechanics.
func Builtin() []Statement {
	return []Statement{
		{Path: "entities/by-id", SQL: `SELECT id, name, type_id, status_id, scope_ids, tags, metadata, vault_path, created_at, updated_at FROM entities WHERE id = $1`, Params: []string{"id"}},
		{Path: "entities/by-ids", SQL: `SELECT id, name, type_id, status_id, scope_ids, tags, metadata, vault_path, created_at, updated_at FROM entities WHERE id = ANY($1)`, Params: []string{"ids"}},
		{Path: "entities/by-name-type-scopes", SQL: `SELECT id FROM entities WHERE name = $1 AND type_id = $2 AND scope_ids = $3`, Params: []string{"name", "type_id", "scope_ids"}},
		{Path: "entities/by-vault-path", SQL: `SELECT id FROM entities WHERE vault_path = $1`, Params: []string{"vault_path"}},
		{Path: "entities/insert", SQL: `INSERT INTO entities (id, name, type_id, status_id, scope_ids, tags, metadata, vault_path, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, Params: []string{"id", "name", "type_id", "status_id", "scope_ids", "tags", "metadata", "vault_path", "created_at", "updated_at"}},
		{Path: "entities/update", SQL: `UPDATE entities SET name=$2, type_id=$3, status_id=$4, scope_ids=$5, tags=$6, metadata=$7, vault_path=$8, updated_at=$9 WHERE id=$1`, Params: []string{"id", "name", "type_id", "status_id", "scope_ids", "tags", "metadata", "vault_path", "updated_at"}},
		{Path: "entities/update-tags", SQL: `UPDATE entities SET tags=$2, updated_at=$3 WHERE id=$1`, Params: []string{"id", "tags", "updated_at"}},
		{Path: "entities/update-scopes", SQL: `UPDATE entities SET scope_ids=$2, updated_at=$3 WHERE id=$1`, Params: []string{"id", "scope_ids", "updated_at"}},
		{Path: "entities/list-by-scopes", SQL: `SELECT id, name, type_id, status_id, scope_ids, tags, metadata, vault_path, created_at, updated_at FROM entities WHERE scope_ids && $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, Params: []string{"scope_ids", "limit", "offset"}},

		{Path: "knowledge/by-id", SQL: `SELECT id, title, url, source_type, content, scope_ids, tags, metadata, status_id, created_at, updated_at FROM knowledge_items WHERE id = $1`, Params: []string{"id"}},
		{Path: "knowledge/by-url", SQL: `SELECT id FROM knowledge_items WHERE url = $1`, Params: []string{"url"}},
		{Path: "knowledge/insert", SQL: `INSERT INTO knowledge_items (id, title, url, source_type, content, scope_ids, tags, metadata, status_id, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, Params: []string{"id", "title", "url", "source_type", "content", "scope_ids", "tags", "metadata", "status_id", "created_at", "updated_at"}},
		{Path: "knowledge/update", SQL: `UPDATE knowledge_items SET title=$2, url=$3, source_type=$4, content=$5, scope_ids=$6, tags=$7, metadata=$8, status_id=$9, updated_at=$10 WHERE id=$1`, Params: []string{"id", "title", "url", "source_type", "content", "scope_ids", "tags", "metadata", "status_id", "updated_at"}},

		{Path: "relationships/by-id", SQL: `SELECT id, source_type, source_id, target_type, target_id, type_id, status_id, properties, created_at, updated_at FROM relationships WHERE id = $1`, Params: []string{"id"}},
		{Path: "relationships/by-endpoint", SQL: `SELECT id, source_type, source_id, target_type, target_id, type_id FROM relationships WHERE (source_type=$1 AND source_id=$2) OR (target_type=$1 AND target_id=$2)`, Params: []string{"node_type", "node_id"}},
		{Path: "relationships/find-reverse", SQL: `SELECT id FROM relationships WHERE source_type=$1 AND source_id=$2 AND target_type=$3 AND target_id=$4 AND type_id=$5`, Params: []string{"source_type", "source_id", "target_type", "target_id", "type_id"}},
		{Path: "relationships/insert", SQL: `INSERT INTO relationships (id, source_type, source_id, target_type, target_id, type_id, status_id, properties, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, Params: []string{"id", "source_type", "source_id", "target_type", "target_id", "type_id", "status_id", "properties", "created_at", "updated_at"}},
		{Path: "relationships/update", SQL: `UPDATE relationships SET status_id=$2, properties=$3, updated_at=$4 WHERE id=$1`, Params: []string{"id", "status_id", "properties", "updated_at"}},

		{Path: "jobs/by-id", SQL: `SELECT id, title, description, job_type, assignee_user_id, agent_id, status_id, priority, parent_job_id, due_at, completed_at, metadata, created_at, updated_at FROM jobs WHERE id = $1`, Params: []string{"id"}},
		{Path: "jobs/max-suffix-for-quarter", SQL: `SELECT id FROM jobs WHERE id LIKE $1 ORDER BY id DESC LIMIT 1`, Params: []string{"quarter_prefix"}},
		{Path: "jobs/insert", SQL: `INSERT INTO jobs (id, title, description, job_type, assignee_user_id, agent_id, status_id, priority, parent_job_id, due_at, completed_at, metadata, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`, Params: []string{"id", "title", "description", "job_type", "assignee_user_id", "agent_id", "status_id", "priority", "parent_job_id", "due_at", "completed_at", "metadata", "created_at", "updated_at"}},
		{Path: "jobs/update", SQL: `UPDATE jobs SET title=$2, description=$3, job_type=$4, assignee_user_id=$5, status_id=$6, priority=$7, parent_job_id=$8, due_at=$9, metadata=$10, updated_at=$11 WHERE id=$1`, Params: []string{"id", "title", "description", "job_type", "assignee_user_id", "status_id", "priority", "parent_job_id", "due_at", "metadata", "updated_at"}},
		{Path: "jobs/update-status", SQL: `UPDATE jobs SET status_id=$2, completed_at=$3, updated_at=$4 WHERE id=$1`, Params: []string{"id", "status_id", "completed_at", "updated_at"}},
		{Path: "jobs/list-by-owner", SQL: `SELECT id, title, description, job_type, assignee_user_id, agent_id, status_id, priority, parent_job_id, due_at, completed_at, metadata, created_at, updated_at FROM jobs WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, Params: []string{"agent_id", "limit", "offset"}},

		{Path: "logs/by-id", SQL: `SELECT id, log_type_id, timestamp, value, status_id, tags, metadata, created_at, updated_at FROM logs WHERE id = $1`, Params: []string{"id"}},
		{Path: "logs/insert", SQL: `INSERT INTO logs (id, log_type_id, timestamp, value, status_id, tags, metadata, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, Params: []string{"id", "log_type_id", "timestamp", "value", "status_id", "tags", "metadata", "created_at", "updated_at"}},
		{Path: "logs/update", SQL: `UPDATE logs SET value=$2, status_id=$3, tags=$4, metadata=$5, updated_at=$6 WHERE id=$1`, Params: []string{"id", "value", "status_id", "tags", "metadata", "updated_at"}},

		{Path: "files/by-id", SQL: `SELECT id, filename, file_path, mime_type, size_bytes, checksum, status_id, tags, metadata, created_at, updated_at FROM files WHERE id = $1`, Params: []string{"id"}},
		{Path: "files/insert", SQL: `INSERT INTO files (id, filename, file_path, mime_type, size_bytes, checksum, status_id, tags, metadata, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, Params: []string{"id", "filename", "file_path", "mime_type", "size_bytes", "checksum", "status_id", "tags", "metadata", "created_at", "updated_at"}},
		{Path: "files/update", SQL: `UPDATE files SET filename=$2, mime_type=$3, size_bytes=$4, checksum=$5, status_id=$6, tags=$7, metadata=$8, updated_at=$9 WHERE id=$1`, Params: []string{"id", "filename", "mime_type", "size_bytes", "checksum", "status_id", "tags", "metadata", "updated_at"}},
		{Path: "files/attachments-of", SQL: `SELECT target_type, target_id FROM relationships WHERE source_type='file' AND source_id=$1`, Params: []string{"file_id"}},

		{Path: "agents/by-id", SQL: `SELECT id, name, description, owner_scope_ids, capabilities, requires_approval, status_id, created_at, updated_at FROM agents WHERE id = $1`, Params: []string{"id"}},
		{Path: "agents/by-name", SQL: `SELECT id FROM agents WHERE name = $1`, Params: []string{"name"}},
		{Path: "agents/insert", SQL: `INSERT INTO agents (id, name, description, owner_scope_ids, capabilities, requires_approval, status_id, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, Params: []string{"id", "name", "description", "owner_scope_ids", "capabilities", "requires_approval", "status_id", "created_at", "updated_at"}},
		{Path: "agents/activate", SQL: `UPDATE agents SET status_id=$2, owner_scope_ids=$3, requires_approval=$4, updated_at=$5 WHERE id=$1`, Params: []string{"id", "status_id", "owner_scope_ids", "requires_approval", "updated_at"}},

		{Path: "keys/by-prefix", SQL: `SELECT id, prefix, hashed_key, entity_id, agent_id, scope_ids, revoked, expires_at, last_used_at, created_at FROM api_keys WHERE prefix = $1`, Params: []string{"prefix"}},
		{Path: "keys/insert", SQL: `INSERT INTO api_keys (id, prefix, hashed_key, entity_id, agent_id, scope_ids, revoked, expires_at, created_at) VALUES ($1,$2,$3,$4,$5,$6,false,$7,$8)`, Params: []string{"id", "prefix", "hashed_key", "entity_id", "agent_id", "scope_ids", "expires_at", "created_at"}},
		{Path: "keys/touch-last-used", SQL: `UPDATE api_keys SET last_used_at=$2 WHERE id=$1`, Params: []string{"id", "last_used_at"}},

		{Path: "approvals/by-id", SQL: `SELECT id, request_type, requested_by_agent_id, change_details, status, reviewed_by_user_id, reviewed_at, review_notes, review_details, linked_record_id, related_job_id, executor_error, created_at, updated_at FROM approval_requests WHERE id = $1`, Params: []string{"id"}},
		{Path: "approvals/count-pending-for-agent", SQL: `SELECT count(*) FROM approval_requests WHERE requested_by_agent_id = $1 AND status = 'pending'`, Params: []string{"agent_id"}},
		{Path: "approvals/insert", SQL: `INSERT INTO approval_requests (id, request_type, requested_by_agent_id, change_details, status, related_job_id, created_at, updated_at) VALUES ($1,$2,$3,$4,'pending',$5,$6,$7)`, Params: []string{"id", "request_type", "requested_by_agent_id", "change_details", "related_job_id", "created_at", "updated_at"}},
		{Path: "approvals/list-pending", SQL: `SELECT id, request_type, requested_by_agent_id, change_details, status, related_job_id, created_at, updated_at FROM approval_requests WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1 OFFSET $2`, Params: []string{"limit", "offset"}},
		{Path: "approvals/transition-approved", SQL: `UPDATE approval_requests SET status='approved', reviewed_by_user_id=$2, reviewed_at=$3, review_details=$4, updated_at=$3 WHERE id=$1 AND status='pending'`, Params: []string{"id", "reviewer_user_id", "reviewed_at", "review_details"}},
		{Path: "approvals/transition-rejected", SQL: `UPDATE approval_requests SET status='rejected', reviewed_by_user_id=$2, reviewed_at=$3, review_notes=$4, updated_at=$3 WHERE id=$1 AND status='pending'`, Params: []string{"id", "reviewer_user_id", "reviewed_at", "review_notes"}},
		{Path: "approvals/set-linked-record", SQL: `UPDATE approval_requests SET linked_record_id=$2 WHERE id=$1`, Params: []string{"id", "linked_record_id"}},
		{Path: "approvals/mark-failed", SQL: `UPDATE approval_requests SET status='approved-failed', executor_error=$2, updated_at=$3 WHERE id=$1`, Params: []string{"id", "error", "updated_at"}},

		{Path: "enrollment/by-id", SQL: `SELECT id, agent_id, enrollment_token_hash, status, approval_request_id, expires_at, created_at FROM enrollment_sessions WHERE id = $1`, Params: []string{"id"}},
		{Path: "enrollment/by-approval-request", SQL: `SELECT id, agent_id, enrollment_token_hash, status, approval_request_id, expires_at, created_at FROM enrollment_sessions WHERE approval_request_id = $1`, Params: []string{"approval_request_id"}},
		{Path: "enrollment/insert", SQL: `INSERT INTO enrollment_sessions (id, agent_id, enrollment_token_hash, status, approval_request_id, expires_at, created_at) VALUES ($1,$2,$3,'pending_approval',$4,$5,$6)`, Params: []string{"id", "agent_id", "enrollment_token_hash", "approval_request_id", "expires_at", "created_at"}},
		{Path: "enrollment/set-status", SQL: `UPDATE enrollment_sessions SET status=$2 WHERE id=$1`, Params: []string{"id", "status"}},
		{Path: "enrollment/redeem", SQL: `UPDATE enrollment_sessions SET status='redeemed' WHERE id=$1 AND status='approved'`, Params: []string{"id"}},

		{Path: "protocols/by-id", SQL: `SELECT id, name, version, steps, status_id, scope_ids, created_at, updated_at FROM protocols WHERE id = $1`, Params: []string{"id"}},
		{Path: "protocols/by-name", SQL: `SELECT id FROM protocols WHERE name = $1`, Params: []string{"name"}},
		{Path: "protocols/insert", SQL: `INSERT INTO protocols (id, name, version, steps, status_id, scope_ids, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, Params: []string{"id", "name", "version", "steps", "status_id", "scope_ids", "created_at", "updated_at"}},
		{Path: "protocols/update", SQL: `UPDATE protocols SET name=$2, version=$3, steps=$4, status_id=$5, scope_ids=$6, updated_at=$7 WHERE id=$1`, Params: []string{"id", "name", "version", "steps", "status_id", "scope_ids", "updated_at"}},

		{Path: "taxonomy/list", SQL: `SELECT id, name, is_builtin FROM %s`, Params: []string{}},
		{Path: "taxonomy/rename", SQL: `UPDATE %s SET name=$2 WHERE id=$1 AND is_builtin=false`, Params: []string{"id", "name"}},

		{Path: "audit/insert", SQL: `INSERT INTO audit_log (entry_id, sequence, table_name, record_id, action, old_data, new_data, payload_hash, previous_hash, entry_hash, changed_by_type, changed_by_id, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, Params: []string{"entry_id", "sequence", "table_name", "record_id", "action", "old_data", "new_data", "payload_hash", "previous_hash", "entry_hash", "changed_by_type", "changed_by_id", "created_at"}},
		{Path: "audit/latest-for-record", SQL: `SELECT entry_id, sequence, table_name, record_id, action, old_data, new_data, payload_hash, previous_hash, entry_hash, changed_by_type, changed_by_id, created_at FROM audit_log WHERE table_name=$1 AND record_id=$2 ORDER BY sequence DESC LIMIT 1`, Params: []string{"table_name", "record_id"}},
		{Path: "audit/by-entry-id", SQL: `SELECT entry_id, sequence, table_name, record_id, action, old_data, new_data, payload_hash, previous_hash, entry_hash, changed_by_type, changed_by_id, created_at FROM audit_log WHERE entry_id=$1`, Params: []string{"entry_id"}},
		{Path: "audit/chain-head", SQL: `SELECT entry_hash FROM audit_log ORDER BY sequence DESC LIMIT 1`, Params: []string{}},
		{Path: "audit/current-sequence", SQL: `SELECT sequence FROM audit_log ORDER BY sequence DESC LIMIT 1`, Params: []string{}},
	}
}
