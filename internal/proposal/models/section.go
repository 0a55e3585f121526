package models

import (
	"sort"

	dErrors "proposals/pkg/domain-errors"
)

// Section names an independently updatable subset of a proposal's content.
type Section string

const (
	SectionOrganization Section = "organization_info"
	SectionEvent        Section = "event_info"
	SectionFiles        Section = "file_refs"
	SectionReporting    Section = "reporting_info"
)

// sectionFields is the per-section write allow-list.
var sectionFields = map[Section][]string{
	SectionOrganization: {
		"organization_name", "organization_type", "department",
		"adviser_name", "adviser_email",
		"contact_person", "contact_email", "contact_phone",
	},
	SectionEvent: {
		"event_name", "event_type", "event_description", "objectives",
		"venue", "start_date", "end_date",
		"expected_participants", "budget", "funding_source",
	},
	SectionFiles: {
		"proposal_document", "budget_breakdown", "venue_approval",
		"supporting_documents",
	},
	SectionReporting: {
		"report_summary", "actual_participants", "actual_expenses",
		"outcomes", "issues_encountered", "attendance_sheet", "photo_documentation",
		"liquidation_report",
	},
}

var validSections = func() map[Section]map[string]bool {
	out := make(map[Section]map[string]bool, len(sectionFields))
	for sec, fields := range sectionFields {
		set := make(map[string]bool, len(fields))
		for _, f := range fields {
			set[f] = true
		}
		out[sec] = set
	}
	return out
}()

// ParseSection constructs a Section from external input.
func ParseSection(s string) (Section, error) {
	sec := Section(s)
	if _, ok := validSections[sec]; !ok {
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown section: "+s)
	}
	return sec, nil
}

// Sections lists every section in a stable order.
func Sections() []Section {
	return []Section{SectionOrganization, SectionEvent, SectionFiles, SectionReporting}
}

// AllowsField reports whether field belongs to the section.
func (s Section) AllowsField(field string) bool {
	return validSections[s][field]
}

// Fields returns the section's allow-list, sorted.
func (s Section) Fields() []string {
	out := append([]string(nil), sectionFields[s]...)
	sort.Strings(out)
	return out
}

// ProtectedFields may never be written by a content update.
var ProtectedFields = []string{
	"status", "reviewed_by", "reviewed_at",
	"id", "uuid", "owner_id", "created_at", "updated_at", "transition_seq",
}

// IsProtectedField reports whether field is reserved for the lifecycle authority.
func IsProtectedField(field string) bool {
	for _, f := range ProtectedFields {
		if f == field {
			return true
		}
	}
	return false
}
