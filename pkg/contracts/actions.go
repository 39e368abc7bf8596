package contracts

// ActionName identifies a registered executor in the action dispatch
// registry. Tool names on the MCP-style surface mirror these verbatim;
// each REST write route dispatches to one of them (e.g. PATCH
// /entities/{id} to update_entity, POST /entities/{id}/revert to
// revert_entity).
type ActionName string

const (
	ActionCreateEntity     ActionName = "create_entity"
	ActionUpdateEntity     ActionName = "update_entity"
	ActionCreateKnowledge  ActionName = "create_knowledge"
	ActionUpdateKnowledge  ActionName = "update_knowledge"
	ActionCreateRelationship ActionName = "create_relationship"
	ActionUpdateRelationship ActionName = "update_relationship"
	ActionCreateJob        ActionName = "create_job"
	ActionUpdateJob        ActionName = "update_job"
	ActionUpdateJobStatus  ActionName = "update_job_status"
	ActionCreateLog        ActionName = "create_log"
	ActionUpdateLog        ActionName = "update_log"
	ActionCreateFile       ActionName = "create_file"
	ActionUpdateFile       ActionName = "update_file"
	ActionCreateProtocol   ActionName = "create_protocol"
	ActionUpdateProtocol   ActionName = "update_protocol"
	ActionBulkUpdateEntityTags   ActionName = "bulk_update_entity_tags"
	ActionBulkUpdateEntityScopes ActionName = "bulk_update_entity_scopes"
	ActionBulkCreateEntities     ActionName = "bulk_create_entities"
	ActionBulkCreateKnowledge    ActionName = "bulk_create_knowledge"
	ActionRevertEntity     ActionName = "revert_entity"
	ActionRegisterAgent    ActionName = "register_agent"
)

// EnrollmentActionNames are reachable from a bootstrap caller even though
// every other action is rejected with ENROLLMENT_REQUIRED for that caller
// kind. They are not part of the executor registry: the approval engine's
// enrollment sub-protocol handles them directly.
var EnrollmentActionNames = []string{
	"agent_enroll_start",
	"agent_enroll_wait",
	"agent_enroll_redeem",
}
