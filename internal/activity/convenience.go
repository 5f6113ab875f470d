// convenience.go provides the typed helpers business handlers call instead of
// assembling Events by hand. Each helper fills in the canned Portuguese
// description for its action and delegates to Recorder.Log.
package activity

import (
	"context"
	"fmt"
)

// genericDescription is the fallback template for events arriving through the
// ingestion endpoint without a description of their own.
func genericDescription(action Action, entityType, entityName string) string {
	display := EntityDisplayName(entityType)
	if entityName != "" {
		return fmt.Sprintf("%s %s: %s", actionVerb(action), display, entityName)
	}
	return fmt.Sprintf("%s %s", actionVerb(action), display)
}

// actionVerb maps an action to its Portuguese past-tense verb.
func actionVerb(action Action) string {
	switch action {
	case ActionCreate:
		return "Criou"
	case ActionUpdate:
		return "Atualizou"
	case ActionDelete:
		return "Eliminou"
	case ActionView:
		return "Visualizou"
	case ActionApprove:
		return "Aprovou"
	case ActionReject:
		return "Rejeitou"
	case ActionAssign:
		return "Atribuiu"
	case ActionMove:
		return "Moveu"
	case ActionExport:
		return "Exportou"
	case ActionImport:
		return "Importou"
	case ActionDownload:
		return "Transferiu"
	case ActionUpload:
		return "Carregou"
	case ActionPrint:
		return "Imprimiu"
	case ActionSearch:
		return "Pesquisou"
	case ActionDuplicate:
		return "Duplicou"
	case ActionArchive:
		return "Arquivou"
	default:
		return "Registou"
	}
}

// LogCreate records a CREATE event with description "Criou {tipo}: {nome}".
func (r *Recorder) LogCreate(ctx context.Context, entityType, entityID, entityName string, metadata map[string]interface{}) {
	r.Log(ctx, Event{
		Action:      ActionCreate,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: fmt.Sprintf("Criou %s: %s", EntityDisplayName(entityType), entityName),
		Metadata:    metadata,
	})
}

// LogUpdate records an UPDATE event.
func (r *Recorder) LogUpdate(ctx context.Context, entityType, entityID, entityName string, metadata map[string]interface{}) {
	r.Log(ctx, Event{
		Action:      ActionUpdate,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: fmt.Sprintf("Atualizou %s: %s", EntityDisplayName(entityType), entityName),
		Metadata:    metadata,
	})
}

// LogDelete records a DELETE event.
func (r *Recorder) LogDelete(ctx context.Context, entityType, entityID, entityName string, metadata map[string]interface{}) {
	r.Log(ctx, Event{
		Action:      ActionDelete,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: fmt.Sprintf("Eliminou %s: %s", EntityDisplayName(entityType), entityName),
		Metadata:    metadata,
	})
}

// LogView records a VIEW event.
func (r *Recorder) LogView(ctx context.Context, entityType, entityID, entityName string, metadata map[string]interface{}) {
	r.Log(ctx, Event{
		Action:      ActionView,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: fmt.Sprintf("Visualizou %s: %s", EntityDisplayName(entityType), entityName),
		Metadata:    metadata,
	})
}

// LogApproval records an APPROVE or REJECT event depending on approved.
// approverType identifies which approval chain acted (e.g. "manager",
// "finance").
func (r *Recorder) LogApproval(ctx context.Context, entityType, entityID, entityName string, approved bool, approverType string) {
	action := ActionApprove
	verb := "Aprovou"
	if !approved {
		action = ActionReject
		verb = "Rejeitou"
	}
	r.Log(ctx, Event{
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: fmt.Sprintf("%s %s: %s", verb, EntityDisplayName(entityType), entityName),
		Metadata: map[string]interface{}{
			"approved":     approved,
			"approverType": approverType,
		},
	})
}

// LogAssignment records an ASSIGN event carrying the assignee in metadata.
func (r *Recorder) LogAssignment(ctx context.Context, entityType, entityID, entityName, assignedToID, assignedToName string) {
	r.Log(ctx, Event{
		Action:      ActionAssign,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: fmt.Sprintf("Atribuiu %s: %s a %s", EntityDisplayName(entityType), entityName, assignedToName),
		Metadata: map[string]interface{}{
			"assignedTo":     assignedToID,
			"assignedToName": assignedToName,
		},
	})
}

// LogMove records a MOVE event for Kanban-style stage transitions. Both
// statuses always appear in the metadata and in the description.
func (r *Recorder) LogMove(ctx context.Context, entityType, entityID, entityName, fromStatus, toStatus string) {
	r.Log(ctx, Event{
		Action:      ActionMove,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: fmt.Sprintf("Moveu %s: %s de %s para %s", EntityDisplayName(entityType), entityName, fromStatus, toStatus),
		Metadata: map[string]interface{}{
			"fromStatus": fromStatus,
			"toStatus":   toStatus,
		},
	})
}

// LogLogin records a LOGIN event with an explicit actor. The actor is passed
// explicitly because the session context may not be established yet at the
// moment the event is recorded.
func (r *Recorder) LogLogin(ctx context.Context, userID, userName string) {
	r.Log(ctx, Event{
		Action:      ActionLogin,
		EntityType:  "auth",
		EntityID:    userID,
		UserID:      userID,
		UserName:    userName,
		Description: fmt.Sprintf("Iniciou sessão: %s", userName),
	})
}

// LogLogout records a LOGOUT event with an explicit actor, for the same
// reason as LogLogin: the session may already be torn down.
func (r *Recorder) LogLogout(ctx context.Context, userID, userName string) {
	r.Log(ctx, Event{
		Action:      ActionLogout,
		EntityType:  "auth",
		EntityID:    userID,
		UserID:      userID,
		UserName:    userName,
		Description: fmt.Sprintf("Terminou sessão: %s", userName),
	})
}

// LogLoginFailed records a failed login attempt against an existing account
// (wrong password, locked account). Attempts against unknown emails cannot be
// recorded — the writer refuses entries without a resolvable actor — and are
// only visible in the operator log.
func (r *Recorder) LogLoginFailed(ctx context.Context, userID, userName, reason string) {
	r.Log(ctx, Event{
		Action:      ActionLoginFailed,
		EntityType:  "auth",
		EntityID:    userID,
		UserID:      userID,
		UserName:    userName,
		Description: fmt.Sprintf("Tentativa de início de sessão falhada: %s", userName),
		Metadata:    map[string]interface{}{"reason": reason},
	})
}
