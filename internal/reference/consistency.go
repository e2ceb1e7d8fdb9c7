package reference

import "fmt"

// Issue is one disease label that cannot be fully joined.
type Issue struct {
	Disease string
	Missing []Table
}

func (i Issue) String() string {
	return fmt.Sprintf("%q missing from %v", i.Disease, i.Missing)
}

// CheckConsistency reports every label absent from at least one table, in
// label order. An empty result means every prediction can be joined.
func CheckConsistency(labels []string, t *Tables) []Issue {
	var issues []Issue
	for _, label := range labels {
		var missing []Table
		if _, ok := t.Descriptions[label]; !ok {
			missing = append(missing, TableDescription)
		}
		if _, ok := t.Medications[label]; !ok {
			missing = append(missing, TableMedications)
		}
		if _, ok := t.Precautions[label]; !ok {
			missing = append(missing, TablePrecautions)
		}
		if len(missing) > 0 {
			issues = append(issues, Issue{Disease: label, Missing: missing})
		}
	}
	return issues
}
