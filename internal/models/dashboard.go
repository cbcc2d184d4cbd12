package models

// LevelCount is the number of active students at a class level.
type LevelCount struct {
	Level    int `db:"level" json:"level"`
	Students int `db:"students" json:"students"`
}

// AttendanceTally counts attendance rows for a day.
type AttendanceTally struct {
	Attended int `db:"attended" json:"attended"`
	Total    int `db:"total" json:"total"`
}

// TeacherClass is a class a teacher is responsible for, with today's marking state.
type TeacherClass struct {
	ClassID          string `db:"class_id" json:"class_id"`
	ClassName        string `db:"class_name" json:"class_name"`
	Level            int    `db:"level" json:"level"`
	StudentCount     int    `db:"student_count" json:"student_count"`
	IsClassTeacher   bool   `db:"is_class_teacher" json:"is_class_teacher"`
	AttendanceMarked bool   `db:"attendance_marked" json:"attendance_marked"`
}
