package types

// AccessCheckResponse answers the authorization query for one caller.
type AccessCheckResponse struct {
	ID          string `json:"id"`
	AllowAccess bool   `json:"allow_access"`
	ServerTime  string `json:"server_time"`
}

// UpsertRequest is the body of PUT /v1/extensions. OldID is optional; when it
// is set and differs from ID the record is rekeyed.
type UpsertRequest struct {
	OldID       string `json:"old_id,omitempty"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	AllowAccess bool   `json:"allow_access"`
}

// SelectionRequest names a set of callers, or all of them.
type SelectionRequest struct {
	IDs []string `json:"ids,omitempty"`
	All bool     `json:"all,omitempty"`
}

type SweepRequest struct {
	GraceDays *int `json:"grace_days,omitempty"`
}

type CountResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

type SweepResponse struct {
	OK           bool `json:"ok"`
	GraceDays    int  `json:"grace_days"`
	Marked       int  `json:"marked"`
	Reinstated   int  `json:"reinstated"`
	RemovedCount int  `json:"removed_count"`
}

type RecordResponse struct {
	OK     bool         `json:"ok"`
	Record AccessRecord `json:"record"`
}

type ListResponse struct {
	OK      bool           `json:"ok"`
	Records []AccessRecord `json:"records"`
}

// AuditEntry is one audit-log line as served by GET /v1/audit.
type AuditEntry struct {
	CallerID    string `json:"caller_id"`
	Action      string `json:"action"`
	AllowAccess *bool  `json:"allow_access,omitempty"`
	Detail      string `json:"detail,omitempty"`
	At          string `json:"at"`
}

type AuditResponse struct {
	OK     bool         `json:"ok"`
	Events []AuditEntry `json:"events"`
}
