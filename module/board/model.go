package board

import "time"

const (
	CollModules = "modules"
	CollCharts  = "charts"
	CollAccess  = "user_module_access"
)

// Module is a named resource group (e.g. "sales", "hr") gating both
// chart visibility and chat scoping.
type Module struct {
	ID        string    `bson:"_id" json:"id"`
	Slug      string    `bson:"slug" json:"slug"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Chart is an embedded report inside a module.
type Chart struct {
	ID        string    `bson:"_id" json:"id"`
	ModuleID  string    `bson:"module_id" json:"module_id"`
	Title     string    `bson:"title" json:"title"`
	EmbedURL  string    `bson:"embed_url" json:"embed_url"`
	IsVisible bool      `bson:"is_visible" json:"is_visible"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Grant authorizes a non-admin user to read one module.
type Grant struct {
	UserID   string `bson:"user_id" json:"user_id"`
	ModuleID string `bson:"module_id" json:"module_id"`
}
