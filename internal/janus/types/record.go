package types

// UninstalledType records why a record was marked uninstalled.
type UninstalledType string

const (
	UninstalledNone      UninstalledType = ""
	UninstalledAutoSweep UninstalledType = "AUTO_SWEEP"
)

// AccessRecord is the registry's stored state for one caller. Field names in
// tags are the persisted document layout and must stay stable.
type AccessRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ShortName   string `json:"shortName,omitempty"`
	Version     string `json:"version,omitempty"`
	VersionName string `json:"versionName,omitempty"`

	AllowAccess bool `json:"allowAccess"`

	// Derived from the live inventory.
	Disabled  bool `json:"disabled"`
	Installed bool `json:"installed"`

	Uninstalled       bool            `json:"uninstalled"`
	UninstalledTimeMS *int64          `json:"uninstalledTimeMS,omitempty"`
	UninstalledType   UninstalledType `json:"uninstalledType,omitempty"`

	// Locked marks the self-record.
	Locked bool `json:"locked,omitempty"`
}

// MarkUninstalled flags the record as gone since atMS.
func (r *AccessRecord) MarkUninstalled(atMS int64, kind UninstalledType) {
	r.Installed = false
	r.Disabled = false
	r.Uninstalled = true
	r.UninstalledTimeMS = &atMS
	r.UninstalledType = kind
}

// Reinstate clears any pending-removal state.
func (r *AccessRecord) Reinstate() {
	r.Uninstalled = false
	r.UninstalledTimeMS = nil
	r.UninstalledType = UninstalledNone
}

// InstalledCaller is one entry of the live inventory.
type InstalledCaller struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ShortName   string `json:"short_name,omitempty" yaml:"short_name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	VersionName string `json:"version_name,omitempty" yaml:"version_name,omitempty"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Type        string `json:"type" yaml:"type"`
}

// Apply overwrites the inventory-derived fields of r from c. AllowAccess and
// Name are left alone.
func (c InstalledCaller) Apply(r *AccessRecord) {
	r.Installed = true
	r.Disabled = !c.Enabled
	r.Description = c.Description
	r.ShortName = c.ShortName
	r.Version = c.Version
	r.VersionName = c.VersionName
}

// NewRecord synthesizes a record for an installed caller that has none yet.
func (c InstalledCaller) NewRecord(allow bool) AccessRecord {
	r := AccessRecord{ID: c.ID, Name: c.Name, AllowAccess: allow}
	c.Apply(&r)
	return r
}
