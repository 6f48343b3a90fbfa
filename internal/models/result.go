package models

// QueryType labels acknowledgment results with the statement's leading verb so
// the UI can phrase the confirmation ("table created", "3 rows updated").
type QueryType string

const (
	QueryTypeCreate   QueryType = "CREATE"
	QueryTypeDrop     QueryType = "DROP"
	QueryTypeAlter    QueryType = "ALTER"
	QueryTypeTruncate QueryType = "TRUNCATE"
	QueryTypeInsert   QueryType = "INSERT"
	QueryTypeUpdate   QueryType = "UPDATE"
	QueryTypeDelete   QueryType = "DELETE"
	QueryTypeOther    QueryType = "OTHER"
)

// Column describes one column of a tabular result.
type Column struct {
	Name     string `json:"name"`
	TypeOID  uint32 `json:"typeOid"`
	TypeName string `json:"typeName"`
}

// Row maps column name to cell value. Column order lives in TableResult.Columns;
// the map exists for the UI's keyed access.
type Row map[string]Value

// TableResult is the tabular half of the result envelope. Rows holds at most
// ResultLimit rows; TotalRows is the full count of rows the statement produced,
// exact unless the counting scan hit its ceiling (TotalExact false, TotalRows
// then a lower bound).
type TableResult struct {
	Columns      []Column `json:"columns"`
	Rows         []Row    `json:"rows"`
	TotalRows    int64    `json:"totalRows"`
	ReturnedRows int      `json:"returnedRows"`
	LimitApplied bool     `json:"limitApplied"`
	ResultLimit  int      `json:"resultLimit"`
	TotalExact   bool     `json:"totalExact"`
}

// AckResult is the acknowledgment half: statements that legitimately produce
// no rows report success explicitly instead of an empty grid.
type AckResult struct {
	Status       string    `json:"status"`
	QueryType    QueryType `json:"queryType"`
	Message      string    `json:"message"`
	AffectedRows int64     `json:"affectedRows"`
}

// QueryResult is the envelope every execution returns: exactly one of Table or
// Ack is set. SchemaChanged tells the caller the cached schema snapshot is
// stale and should be re-fetched.
type QueryResult struct {
	Table         *TableResult `json:"table,omitempty"`
	Ack           *AckResult   `json:"ack,omitempty"`
	ElapsedMS     int64        `json:"elapsedMs"`
	SchemaChanged bool         `json:"schemaChanged"`
}
