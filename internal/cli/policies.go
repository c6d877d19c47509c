package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aravindh-murugesan/snapsentry-go/internal/policy"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var policiesCommand = &cobra.Command{
	Use:     "policies",
	Short:   "Inspect volume snapshot policies",
	GroupID: "snapsentry",
}

var policiesValidateCommand = &cobra.Command{
	Use:   "validate",
	Short: "Load the policy document and report every entry",
	Long:  `Fetches the policy document from the configured source and validates each volume entry without calling the cloud provider. Exits non-zero when any entry is invalid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(headerStyle.Render("Snapsentry - Policy Validation"))

		if cfg.PolicySource == "" {
			return fmt.Errorf("policy-source is required")
		}

		var sess *session.Session
		if isS3Location(cfg.PolicySource) {
			s, err := newAWSSession(cfg)
			if err != nil {
				return err
			}
			sess = s
		}

		source, err := newPolicySource(cfg.PolicySource, sess)
		if err != nil {
			return fmt.Errorf("policy source: %w", err)
		}
		set, err := source.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading %s: %w", source.Name(), err)
		}

		rows, invalid := validationRows(set)
		fmt.Println(renderValidationTable(rows))

		if invalid > 0 {
			return fmt.Errorf("%d of %d policies are invalid", invalid, set.Len())
		}
		fmt.Printf("%d policies valid (%s)\n", set.Len(), source.Name())
		return nil
	},
}

// validationRows returns one row per volume, sorted by volume ID, and the
// number of invalid entries.
func validationRows(set policy.Set) ([][]string, int) {
	rows := make([][]string, 0, set.Len())
	invalid := 0

	for _, id := range set.VolumeIDs() {
		if err, rejected := set.Rejected[id]; rejected {
			invalid++
			rows = append(rows, []string{id, "", "", "", "invalid: " + err.Error()})
			continue
		}

		p := set.Policies[id]
		status := "ok"
		if err := p.Validate(); err != nil {
			invalid++
			status = "invalid: " + err.Error()
		}
		retention := strconv.Itoa(p.MaxSnapshots)
		if p.MaxSnapshots == 0 {
			retention = "unlimited"
		}
		rows = append(rows, []string{id, string(p.Interval), retention, p.SnapshotName(), status})
	}
	return rows, invalid
}

func renderValidationTable(rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers("VOLUME", "INTERVAL", "RETENTION", "NAME", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 4 && row >= 0 && row < len(rows) && strings.HasPrefix(rows[row][4], "invalid"):
				return invalidCellStyle
			default:
				return tableCellStyle
			}
		}).
		Render()
}

func init() {
	rootCommand.AddCommand(policiesCommand)
	policiesCommand.AddCommand(policiesValidateCommand)
}
