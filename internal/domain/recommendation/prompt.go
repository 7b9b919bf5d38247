package recommendation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/siss-hmue/labflow/internal/domain/catalog"
	"github.com/siss-hmue/labflow/internal/platform/ruleengine"
)

const promptHeader = "Generate a concise clinical interpretation of the following lab results:"

const promptFooter = `Format your response as:
1) Abnormal findings
2) Clinical implications
3) Recommended follow-up tests or interventions

Use medical terminology. Be direct, specific, and precise. Avoid conversational language.`

// BuildPrompt renders the deterministic prompt for one test instance. The
// gender channel is printed as Male/Female with no status phrase since it
// has no high/low notion; every other value keeps its numeric form.
func BuildPrompt(patientName string, items []SummaryItem) string {
	var lines []string
	for _, item := range items {
		value := strconv.FormatFloat(item.Value, 'f', -1, 64)
		status := item.Status
		if strings.EqualFold(item.Name, catalog.GenderTypeName) {
			if item.Value == 0 {
				value = "Male"
			} else {
				value = "Female"
			}
			status = nil
		}

		unit := ""
		if item.Unit != nil {
			unit = *item.Unit
		}
		lines = append(lines, fmt.Sprintf("- %s = %s %s (%s)", item.Name, value, unit, statusPhrase(status)))
	}

	return fmt.Sprintf("%s\n\nPatient: %s\nLab Values:\n%s\n\n%s",
		promptHeader, patientName, strings.Join(lines, "\n"), promptFooter)
}

func statusPhrase(status *string) string {
	if status == nil || *status == ruleengine.UnknownStatus {
		return "Status is unknown"
	}
	return "Status: " + *status
}
