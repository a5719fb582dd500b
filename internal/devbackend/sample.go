package devbackend

import "github.com/kadrsp/importdesk/internal/roster"

func years(n int) *int { return &n }

// SampleTeachers returns the records made visible by an import.
func SampleTeachers() []roster.Teacher {
	return []roster.Teacher{
		{
			ID:                     1,
			FullName:               "Смирнова Ольга Викторовна",
			Position:               "Доцент",
			EducationLevel:         "Высшее",
			AcademicDegree:         "Кандидат педагогических наук",
			AcademicTitle:          "Доцент",
			TotalExperience:        years(21),
			TeachingExperience:     years(18),
			ProfessionalExperience: years(3),
			Qualifications: []roster.Qualification{
				{CourseName: "Цифровые технологии в образовании", Year: 2023},
				{CourseName: "Инклюзивное обучение", Year: 2022},
			},
		},
		{
			ID:                 2,
			FullName:           "Алексеев Дмитрий Петрович",
			Position:           "Старший преподаватель",
			EducationLevel:     "Высшее",
			TotalExperience:    years(9),
			TeachingExperience: years(6),
			Qualifications: []roster.Qualification{
				{CourseName: "Преподавание программирования", Year: 2024},
			},
		},
		{
			ID:                     3,
			FullName:               "Кузнецов Игорь Андреевич",
			Position:               "Профессор",
			EducationLevel:         "Высшее",
			AcademicDegree:         "Доктор технических наук",
			AcademicTitle:          "Профессор",
			TotalExperience:        years(34),
			TeachingExperience:     years(27),
			ProfessionalExperience: years(7),
			Qualifications:         []roster.Qualification{},
		},
	}
}
