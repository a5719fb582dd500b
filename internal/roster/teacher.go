package roster

import (
	"encoding/json"
	"strings"
)

// Qualification is one professional development course of a teacher.
type Qualification struct {
	CourseName string `json:"course_name"`
	Year       int    `json:"year,omitempty"`
}

// UnmarshalJSON accepts both the current {"course_name": ...} shape and the
// legacy {"name": ...} shape still produced by older backend builds.
func (q *Qualification) UnmarshalJSON(data []byte) error {
	var raw struct {
		CourseName string `json:"course_name"`
		Name       string `json:"name"`
		Year       int    `json:"year"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.CourseName = raw.CourseName
	if q.CourseName == "" {
		q.CourseName = raw.Name
	}
	q.Year = raw.Year
	return nil
}

// Teacher is a single staff record as served by GET /api/teachers.
//
// Experience fields are years. Pointer fields distinguish "not reported"
// from zero so the table can leave those cells blank.
type Teacher struct {
	ID                     int             `json:"teacher_id,omitempty"`
	FullName               string          `json:"full_name"`
	Position               string          `json:"position"`
	EducationLevel         string          `json:"education_level"`
	AcademicDegree         string          `json:"academic_degree,omitempty"`
	AcademicTitle          string          `json:"academic_title,omitempty"`
	TotalExperience        *int            `json:"total_experience,omitempty"`
	TeachingExperience     *int            `json:"teaching_experience,omitempty"`
	ProfessionalExperience *int            `json:"professional_experience,omitempty"`
	Qualifications         []Qualification `json:"qualifications"`
}

// QualificationsDisplay flattens the qualification list into one
// comma-separated display string.
func (t Teacher) QualificationsDisplay() string {
	names := make([]string, 0, len(t.Qualifications))
	for _, q := range t.Qualifications {
		names = append(names, q.CourseName)
	}
	return strings.Join(names, ", ")
}

// Clone returns a copy of teachers that shares no slices with the input.
func Clone(teachers []Teacher) []Teacher {
	if teachers == nil {
		return nil
	}
	out := make([]Teacher, len(teachers))
	for i, t := range teachers {
		out[i] = t
		if t.Qualifications != nil {
			out[i].Qualifications = append([]Qualification(nil), t.Qualifications...)
		}
	}
	return out
}
