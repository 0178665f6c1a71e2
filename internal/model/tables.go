package model

// Table names for the four tracked business tables.
const (
	TableProjects = "projects"
	TableTasks    = "tasks"
	TableTags     = "tags"
	TableTaskTags = "task_tags"
)

// Tables lists the tracked tables in dependency order: parents before
// dependents. The download phase inserts in this order so foreign keys
// are satisfied; the exporter clears remote tables in the reverse order.
//
// This set is fixed configuration. Adding a table here without updating
// the local schema in localdb will break column introspection.
var Tables = []string{
	TableProjects,
	TableTags,
	TableTasks,
	TableTaskTags,
}

// TablesReversed returns the tracked tables in reverse dependency order,
// dependents first. Used when deleting across tables.
func TablesReversed() []string {
	out := make([]string, len(Tables))
	for i, t := range Tables {
		out[len(Tables)-1-i] = t
	}
	return out
}

// IsTracked reports whether the given table participates in sync.
func IsTracked(table string) bool {
	for _, t := range Tables {
		if t == table {
			return true
		}
	}
	return false
}
