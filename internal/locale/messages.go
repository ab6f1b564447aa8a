package locale

// Message keys. Each entry is {en-US, pt-BR}.
const (
	MsgAppTitle         = "app.title"
	MsgNavDashboard     = "nav.dashboard"
	MsgNavRules         = "nav.rules"
	MsgNavPermissions   = "nav.permissions"
	MsgNavSynthetic     = "nav.synthetic"
	MsgNavBranding      = "nav.branding"
	MsgLoginRequired    = "auth.login_required"
	MsgAdminRequired    = "auth.admin_required"
	MsgAlreadySignedIn  = "auth.already_signed_in"
	MsgSignedInAs       = "auth.signed_in_as"
	MsgSignedOut        = "auth.signed_out"
	MsgRuleCreated      = "rules.created"
	MsgRuleUpdated      = "rules.updated"
	MsgRuleDeleted      = "rules.deleted"
	MsgRulesEmpty       = "rules.empty"
	MsgUserActivated    = "permissions.activated"
	MsgUserDeactivated  = "permissions.deactivated"
	MsgRoleAssigned     = "permissions.role_assigned"
	MsgRoleRevoked      = "permissions.role_revoked"
	MsgBrandingSaved    = "branding.saved"
	MsgSyntheticRunning = "synthetic.running"
	MsgSyntheticDone    = "synthetic.done"
	MsgSyntheticStopped = "synthetic.stopped"
	MsgSyntheticExport  = "synthetic.exported"
	MsgLocaleChanged    = "locale.changed"
	MsgHealthOK         = "health.ok"
)

var translations = map[string][2]string{
	MsgAppTitle:         {"AlgoShield", "AlgoShield"},
	MsgNavDashboard:     {"Dashboard", "Painel"},
	MsgNavRules:         {"Rules", "Regras"},
	MsgNavPermissions:   {"Permissions", "Permissões"},
	MsgNavSynthetic:     {"Synthetic Test", "Teste Sintético"},
	MsgNavBranding:      {"Branding", "Identidade Visual"},
	MsgLoginRequired:    {"You need to sign in first: run %s", "Você precisa entrar primeiro: execute %s"},
	MsgAdminRequired:    {"This area is restricted to administrators", "Esta área é restrita a administradores"},
	MsgAlreadySignedIn:  {"Already signed in as %s", "Já conectado como %s"},
	MsgSignedInAs:       {"Signed in as %s", "Conectado como %s"},
	MsgSignedOut:        {"Signed out", "Sessão encerrada"},
	MsgRuleCreated:      {"Rule %s created", "Regra %s criada"},
	MsgRuleUpdated:      {"Rule %s updated", "Regra %s atualizada"},
	MsgRuleDeleted:      {"Rule %s deleted", "Regra %s excluída"},
	MsgRulesEmpty:       {"No rules configured", "Nenhuma regra configurada"},
	MsgUserActivated:    {"User %s activated", "Usuário %s ativado"},
	MsgUserDeactivated:  {"User %s deactivated", "Usuário %s desativado"},
	MsgRoleAssigned:     {"Role %s assigned to %s", "Papel %s atribuído a %s"},
	MsgRoleRevoked:      {"Role %s removed from %s", "Papel %s removido de %s"},
	MsgBrandingSaved:    {"Branding saved", "Identidade visual salva"},
	MsgSyntheticRunning: {"Event %d of %d", "Evento %d de %d"},
	MsgSyntheticDone:    {"Completed %d events", "%d eventos concluídos"},
	MsgSyntheticStopped: {"Stopped after %d events", "Interrompido após %d eventos"},
	MsgSyntheticExport:  {"Results written to %s", "Resultados gravados em %s"},
	MsgLocaleChanged:    {"Language set to %s", "Idioma definido como %s"},
	MsgHealthOK:         {"API is healthy", "API operacional"},
}
