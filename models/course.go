package models

type Course struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// YearLevels lists the accepted year_level values.
var YearLevels = []string{"1", "2", "3", "4"}

// Courses is the fixed catalog a submission's course must come from.
var Courses = []Course{
	{Code: "bsit", Name: "Bachelor of Science in Information Technology"},
	{Code: "bscs", Name: "Bachelor of Science in Computer Science"},
	{Code: "bscpe", Name: "Bachelor of Science in Computer Engineering"},
	{Code: "bsee", Name: "Bachelor of Science in Electrical Engineering"},
	{Code: "bscivil", Name: "Bachelor of Science in Civil Engineering"},
	{Code: "bsme", Name: "Bachelor of Science in Mechanical Engineering"},
	{Code: "bsie", Name: "Bachelor of Science in Industrial Engineering"},
	{Code: "bsce", Name: "Bachelor of Science in Chemical Engineering"},
	{Code: "bsarch", Name: "Bachelor of Science in Architecture"},
	{Code: "bsa", Name: "Bachelor of Science in Accountancy"},
	{Code: "bsba", Name: "Bachelor of Science in Business Administration"},
	{Code: "bsn", Name: "Bachelor of Science in Nursing"},
	{Code: "bspharm", Name: "Bachelor of Science in Pharmacy"},
	{Code: "bsmedtech", Name: "Bachelor of Science in Medical Technology"},
	{Code: "bspt", Name: "Bachelor of Science in Physical Therapy"},
	{Code: "bsot", Name: "Bachelor of Science in Occupational Therapy"},
	{Code: "bspsych", Name: "Bachelor of Science in Psychology"},
	{Code: "bsbio", Name: "Bachelor of Science in Biology"},
	{Code: "bschem", Name: "Bachelor of Science in Chemistry"},
	{Code: "bsmath", Name: "Bachelor of Science in Mathematics"},
	{Code: "bsstat", Name: "Bachelor of Science in Statistics"},
	{Code: "bsphysics", Name: "Bachelor of Science in Physics"},
}

// IsCourse reports whether code is in the course catalog.
func IsCourse(code string) bool {
	for _, c := range Courses {
		if c.Code == code {
			return true
		}
	}
	return false
}

// CourseName returns the display name for code, or code itself when unknown.
func CourseName(code string) string {
	for _, c := range Courses {
		if c.Code == code {
			return c.Name
		}
	}
	return code
}
