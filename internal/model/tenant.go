package model

// Tenant is one configured user of the system: a workspace connection, a
// provider domain, and the field mapping for that domain.
type Tenant struct {
	ID             string
	Domain         string
	WorkspaceToken string
	Config         *SyncConfig
}
