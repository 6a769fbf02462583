// Package roster exposes read-only views of class membership and identity
// data owned by the school administration system. The billing engine only
// references these entities by identifier.
package roster

// Class describes a class group for one academic year.
type Class struct {
	ID             int64
	SchoolCode     string
	Name           string
	AcademicYearID int64
}

// Student is the subset of student data billing cares about.
type Student struct {
	ID         int64
	SchoolCode string
	FullName   string
	GuardianID int64
}
