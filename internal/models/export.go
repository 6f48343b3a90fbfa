package models

// ExportFormat is the output file format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportScope selects what gets exported: the rows already displayed (view,
// bounded by the result limit) or the full result of re-running the query.
type ExportScope string

const (
	ScopeView ExportScope = "view"
	ScopeAll  ExportScope = "all"
)

// ExportStrategy records which path an export actually took.
type ExportStrategy string

const (
	StrategyMemory ExportStrategy = "memory"
	StrategyStream ExportStrategy = "stream"
	StrategyCopy   ExportStrategy = "copy"
)

// ExportOptions tune the output. QuoteAllValues forces quotes around every
// non-NULL CSV field; the NULL marker always stays bare so it survives
// re-import, same as COPY's FORCE_QUOTE behavior.
type ExportOptions struct {
	IncludeHeaders bool `json:"includeHeaders"`
	QuoteAllValues bool `json:"quoteAllValues"`
	UseNativeCopy  bool `json:"useNativeCopy"`
}

// ExportJob is an ephemeral description of one export request. For ScopeView
// the caller supplies the in-memory rows; for ScopeAll the SQL is re-executed
// without a row limit.
type ExportJob struct {
	SQL        string        `json:"sql"`
	OutputPath string        `json:"outputPath"`
	Format     ExportFormat  `json:"format"`
	Scope      ExportScope   `json:"scope"`
	Options    ExportOptions `json:"options"`
	View       *TableResult  `json:"view,omitempty"`
}

// ExportSummary reports a completed export.
type ExportSummary struct {
	Path      string         `json:"path"`
	Format    ExportFormat   `json:"format"`
	Strategy  ExportStrategy `json:"strategy"`
	Rows      int64          `json:"rows"`
	Bytes     int64          `json:"bytes"`
	ElapsedMS int64          `json:"elapsedMs"`
}
