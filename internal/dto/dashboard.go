package dto

import "github.com/noah-isme/school-mgmt-api/internal/models"

// AdminDashboardResponse is the school-wide snapshot shown to administrators.
type AdminDashboardResponse struct {
	AcademicYear        string              `json:"academic_year"`
	Term                int                 `json:"term"`
	Date                string              `json:"date"`
	ActiveStudents      int                 `json:"active_students"`
	Classes             int                 `json:"classes"`
	Subjects            int                 `json:"subjects"`
	Teachers            int                 `json:"teachers"`
	AttendanceRateToday float64             `json:"attendance_rate_today"`
	AttendanceToday     int                 `json:"attendance_records_today"`
	GradesThisTerm      int                 `json:"grades_this_term"`
	StudentsPerLevel    []models.LevelCount `json:"students_per_level"`
}

// TeacherDashboardResponse lists the caller's classes and today's marking state.
type TeacherDashboardResponse struct {
	TeacherID         string                `json:"teacher_id"`
	Date              string                `json:"date"`
	Classes           []models.TeacherClass `json:"classes"`
	PendingAttendance int                   `json:"pending_attendance"`
}
