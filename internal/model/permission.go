package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionTestsRead allows viewing test lists and details.
	PermissionTestsRead Permission = "tests:read"

	// PermissionTestsWrite allows creating and updating tests.
	PermissionTestsWrite Permission = "tests:write"

	// PermissionTestsWriteAll allows managing every author's tests, not just
	// the admin's own.
	PermissionTestsWriteAll Permission = "tests:write_all"

	// PermissionTestsPublish allows publishing tests to make them available to candidates.
	PermissionTestsPublish Permission = "tests:publish"

	// PermissionResultsRead allows viewing attempt results.
	PermissionResultsRead Permission = "results:read"

	// PermissionCandidatesRead allows viewing candidate lists and details.
	PermissionCandidatesRead Permission = "candidates:read"

	// PermissionCandidatesWrite allows creating and updating candidates.
	PermissionCandidatesWrite Permission = "candidates:write"

	// PermissionCandidatesResetSession allows resetting a candidate's active login session.
	PermissionCandidatesResetSession Permission = "candidates:reset_session"

	// PermissionMonitorRead allows streaming live proctoring data.
	PermissionMonitorRead Permission = "monitor:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionTestsRead,
	PermissionTestsWrite,
	PermissionTestsWriteAll,
	PermissionTestsPublish,
	PermissionResultsRead,
	PermissionCandidatesRead,
	PermissionCandidatesWrite,
	PermissionCandidatesResetSession,
	PermissionMonitorRead,
}
