// Package activity implements the system activity log: the writer that
// persists immutable entries, the typed convenience API used by business
// handlers, and the query/statistics API consumed by the dashboard.
//
// The overriding design rule of this package is that activity logging is
// best-effort and must never fail the business operation it annotates.
// Recorder.Log never returns an error; failures are logged and counted, and
// the entry is dropped.
package activity

// Action is the canonical enumeration of activity verbs. The set is shared by
// the writer, the ingestion endpoint, and the dashboard filter options so all
// three agree on what a valid action is.
type Action string

const (
	ActionCreate           Action = "CREATE"
	ActionUpdate           Action = "UPDATE"
	ActionDelete           Action = "DELETE"
	ActionView             Action = "VIEW"
	ActionLogin            Action = "LOGIN"
	ActionLogout           Action = "LOGOUT"
	ActionLoginFailed      Action = "LOGIN_FAILED"
	ActionApprove          Action = "APPROVE"
	ActionReject           Action = "REJECT"
	ActionSend             Action = "SEND"
	ActionComplete         Action = "COMPLETE"
	ActionAssign           Action = "ASSIGN"
	ActionMove             Action = "MOVE"
	ActionExport           Action = "EXPORT"
	ActionImport           Action = "IMPORT"
	ActionBackup           Action = "BACKUP"
	ActionRestore          Action = "RESTORE"
	ActionSearch           Action = "SEARCH"
	ActionFilter           Action = "FILTER"
	ActionSort             Action = "SORT"
	ActionPaginate         Action = "PAGINATE"
	ActionDownload         Action = "DOWNLOAD"
	ActionUpload           Action = "UPLOAD"
	ActionPrint            Action = "PRINT"
	ActionShare            Action = "SHARE"
	ActionNavigate         Action = "NAVIGATE"
	ActionAccess           Action = "ACCESS"
	ActionRefresh          Action = "REFRESH"
	ActionCopy             Action = "COPY"
	ActionDuplicate        Action = "DUPLICATE"
	ActionArchive          Action = "ARCHIVE"
	ActionUnarchive        Action = "UNARCHIVE"
	ActionRestoreFromTrash Action = "RESTORE_FROM_TRASH"
	ActionForceDelete      Action = "FORCE_DELETE"
	ActionBulkAction       Action = "BULK_ACTION"
	ActionSettingsChange   Action = "SETTINGS_CHANGE"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionProfileUpdate    Action = "PROFILE_UPDATE"
	ActionSessionStart     Action = "SESSION_START"
	ActionSessionEnd       Action = "SESSION_END"
)

// validActions indexes the canonical set for O(1) ingestion-time validation.
var validActions = map[Action]struct{}{
	ActionCreate: {}, ActionUpdate: {}, ActionDelete: {}, ActionView: {},
	ActionLogin: {}, ActionLogout: {}, ActionLoginFailed: {},
	ActionApprove: {}, ActionReject: {}, ActionSend: {}, ActionComplete: {},
	ActionAssign: {}, ActionMove: {}, ActionExport: {}, ActionImport: {},
	ActionBackup: {}, ActionRestore: {}, ActionSearch: {}, ActionFilter: {},
	ActionSort: {}, ActionPaginate: {}, ActionDownload: {}, ActionUpload: {},
	ActionPrint: {}, ActionShare: {}, ActionNavigate: {}, ActionAccess: {},
	ActionRefresh: {}, ActionCopy: {}, ActionDuplicate: {}, ActionArchive: {},
	ActionUnarchive: {}, ActionRestoreFromTrash: {}, ActionForceDelete: {},
	ActionBulkAction: {}, ActionSettingsChange: {}, ActionPasswordChange: {},
	ActionProfileUpdate: {}, ActionSessionStart: {}, ActionSessionEnd: {},
}

// IsValid reports whether a belongs to the canonical action set.
func (a Action) IsValid() bool {
	_, ok := validActions[a]
	return ok
}

// String implements fmt.Stringer.
func (a Action) String() string { return string(a) }

// entityDisplayNames maps entity types to their Portuguese display names used
// in generated descriptions. Unknown types pass through unchanged.
var entityDisplayNames = map[string]string{
	"lead":     "lead",
	"client":   "cliente",
	"project":  "projeto",
	"proposal": "proposta",
	"task":     "tarefa",
	"invoice":  "fatura",
	"ticket":   "ticket",
	"user":     "utilizador",
	"article":  "artigo",
}

// EntityDisplayName returns the localized display name for an entity type.
func EntityDisplayName(entityType string) string {
	if name, ok := entityDisplayNames[entityType]; ok {
		return name
	}
	return entityType
}
