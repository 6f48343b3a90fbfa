package models

// SchemaSnapshot is the sidebar's view of the database, assembled by one
// introspection pass. Categories that could not be read (older servers,
// missing privileges) come back empty and are named in Partial; the snapshot
// as a whole never fails because one catalog did.
type SchemaSnapshot struct {
	Schemas           []SchemaInfo           `json:"schemas"`
	Tables            []TableInfo            `json:"tables"`
	Views             []ViewInfo             `json:"views"`
	MaterializedViews []MaterializedViewInfo `json:"materializedViews"`
	Indexes           []IndexInfo            `json:"indexes"`
	Functions         []FunctionInfo         `json:"functions"`
	Triggers          []TriggerInfo          `json:"triggers"`
	Sequences         []SequenceInfo         `json:"sequences"`
	ForeignKeys       []ForeignKeyInfo       `json:"foreignKeys"`
	Constraints       []Constraint           `json:"constraints"`
	Enums             []EnumInfo             `json:"enums"`
	Partial           []string               `json:"partial,omitempty"`
}

// SchemaInfo describes one namespace.
type SchemaInfo struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// TableInfo describes one table. EstimatedRows is the planner's reltuples
// estimate, not a count.
type TableInfo struct {
	Schema        string `json:"schema"`
	Name          string `json:"name"`
	EstimatedRows int64  `json:"estimatedRows"`
	Size          string `json:"size"`
}

// ViewInfo describes one view.
type ViewInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// MaterializedViewInfo describes one materialized view.
type MaterializedViewInfo struct {
	Schema    string `json:"schema"`
	Name      string `json:"name"`
	Populated bool   `json:"populated"`
}

// IndexInfo describes one index with its full definition.
type IndexInfo struct {
	Schema     string `json:"schema"`
	Table      string `json:"table"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// FunctionInfo describes a function or procedure. Kind is "function",
// "procedure" or "trigger".
type FunctionInfo struct {
	Schema     string `json:"schema"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	ReturnType string `json:"returnType,omitempty"`
	Kind       string `json:"kind"`
}

// TriggerInfo describes one user trigger.
type TriggerInfo struct {
	Schema     string `json:"schema"`
	Table      string `json:"table"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// SequenceInfo describes one sequence.
type SequenceInfo struct {
	Schema     string `json:"schema"`
	Name       string `json:"name"`
	StartValue int64  `json:"startValue"`
	MinValue   int64  `json:"minValue"`
	MaxValue   int64  `json:"maxValue"`
	Increment  int64  `json:"increment"`
	Cycle      bool   `json:"cycle"`
}

// ForeignKeyInfo describes one foreign-key relationship.
type ForeignKeyInfo struct {
	Schema         string   `json:"schema"`
	Table          string   `json:"table"`
	Name           string   `json:"name"`
	Columns        []string `json:"columns"`
	ForeignSchema  string   `json:"foreignSchema"`
	ForeignTable   string   `json:"foreignTable"`
	ForeignColumns []string `json:"foreignColumns"`
	Definition     string   `json:"definition"`
}

// EnumInfo describes one enum type with its labels in sort order.
type EnumInfo struct {
	Schema string   `json:"schema"`
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// Constraint represents a table constraint as pg_get_constraintdef reports it.
type Constraint struct {
	Schema       string   `json:"schema"`
	Table        string   `json:"table"`
	Name         string   `json:"name"`
	Type         string   `json:"type"` // p=primary key, f=foreign key, u=unique, c=check
	Columns      []string `json:"columns"`
	Definition   string   `json:"definition"`
	ForeignTable string   `json:"foreignTable,omitempty"`
	ForeignCols  []string `json:"foreignCols,omitempty"`
}

// ColumnDetail is the per-column structure fetched on demand when the UI
// expands a table. It is deliberately not part of the schema snapshot; column
// detail for thousands of tables up front is what made the original sidebar
// slow.
type ColumnDetail struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	IsNullable   bool   `json:"isNullable"`
	DefaultValue string `json:"defaultValue,omitempty"`
	IsIdentity   bool   `json:"isIdentity"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
	IsUnique     bool   `json:"isUnique"`
	Comment      string `json:"comment,omitempty"`
}
