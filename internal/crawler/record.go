package crawler

import (
	"encoding/json"
	"sort"
	"strings"
)

// Canonical field names of a personnel record.
const (
	FieldFirstName      = "First Name"
	FieldLastName       = "Last Name"
	FieldHonorific      = "Honorific"
	FieldEmail          = "Email Address"
	FieldSchoolPhone    = "School Phone"
	FieldDepartment     = "Department"
	FieldGradeLevel     = "Grade Level"
	FieldCity           = "City"
	FieldSchoolDistrict = "School District"
	FieldSchoolName     = "School Name"
	FieldState          = "State"
)

// CanonicalFields lists the canonical field names in output order.
var CanonicalFields = []string{
	FieldFirstName,
	FieldLastName,
	FieldHonorific,
	FieldEmail,
	FieldSchoolPhone,
	FieldDepartment,
	FieldGradeLevel,
	FieldCity,
	FieldSchoolDistrict,
	FieldSchoolName,
	FieldState,
}

// Record is one normalized staff member. Canonical fields that were not
// observed hold the empty string and are emitted as explicit nulls; columns
// outside the canonical set are carried in Extra under their original header.
type Record struct {
	FirstName      string
	LastName       string
	Honorific      string
	Email          string
	SchoolPhone    string
	Department     string
	GradeLevel     string
	City           string
	SchoolDistrict string
	SchoolName     string
	State          string
	Extra          map[string]string
}

func (r *Record) slot(field string) *string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "first name":
		return &r.FirstName
	case "last name":
		return &r.LastName
	case "honorific":
		return &r.Honorific
	case "email address", "email", "e-mail":
		return &r.Email
	case "school phone", "phone":
		return &r.SchoolPhone
	case "department":
		return &r.Department
	case "grade level", "grade":
		return &r.GradeLevel
	case "city":
		return &r.City
	case "school district":
		return &r.SchoolDistrict
	case "school name":
		return &r.SchoolName
	case "state":
		return &r.State
	}
	return nil
}

// Set binds value to a canonical field when field names one or one of its
// aliases (case-insensitive), otherwise to Extra. Later writes replace earlier
// ones. A blank field name is ignored.
func (r *Record) Set(field, value string) {
	if strings.TrimSpace(field) == "" {
		return
	}
	if p := r.slot(field); p != nil {
		*p = value
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[field] = value
}

// Get returns the value of field and whether it is present (non-empty).
func (r Record) Get(field string) (string, bool) {
	if p := r.slot(field); p != nil {
		return *p, *p != ""
	}
	v, ok := r.Extra[field]
	return v, ok
}

// Keys returns the canonical field names followed by the Extra keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(CanonicalFields)+len(r.Extra))
	keys = append(keys, CanonicalFields...)
	extra := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// Map returns every key of the record. Absent canonical fields map to nil.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(CanonicalFields)+len(r.Extra))
	for _, k := range r.Keys() {
		v, ok := r.Get(k)
		if !ok && v == "" {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the record as a flat object keyed by field name.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}
