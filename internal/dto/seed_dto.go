package dto

// SeedCoursesRequest tunes the course seeding.
type SeedCoursesRequest struct {
	StudentsPerCourse int `json:"students_per_course" validate:"omitempty,min=1,max=40"`
}

// SeedSummary counts the rows each seed created. Existing rows are not counted.
type SeedSummary struct {
	Rewards            int `json:"rewards"`
	Courses            int `json:"courses"`
	Subjects           int `json:"subjects"`
	Teachers           int `json:"teachers"`
	Students           int `json:"students"`
	Enrollments        int `json:"enrollments"`
	TeacherAssignments int `json:"teacher_assignments"`
	Groups             int `json:"groups"`
}
