package cli

import (
	"fmt"

	"github.com/lkarlslund/winsec/modules/acl"
	"github.com/lkarlslund/winsec/modules/ui"
	"github.com/lkarlslund/winsec/modules/util"
	"github.com/lkarlslund/winsec/modules/wellknown"
	"github.com/lkarlslund/winsec/modules/winsec"
	"github.com/spf13/cobra"
)

var (
	inspectCmd = &cobra.Command{
		Use:   "inspect [path ...]",
		Short: "Show owner, group and DACL of securable objects",
		RunE:  inspectObjects,
	}

	inspectType     *string
	inspectJSONFile *string
)

var objectTypes = map[string]winsec.ObjectType{
	"file":     winsec.FileObject,
	"service":  winsec.ServiceObject,
	"printer":  winsec.PrinterObject,
	"registry": winsec.RegistryKeyObject,
	"share":    winsec.LMShareObject,
}

// ObjectReport describes one securable object.
type ObjectReport struct {
	Object string     `json:"object"`
	Owner  *SidReport `json:"owner,omitempty"`
	Group  *SidReport `json:"group,omitempty"`
	DACL   []string   `json:"dacl,omitempty"`
}

func inspectObjects(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("give me at least one object to inspect")
	}
	objectType, found := objectTypes[*inspectType]
	if !found {
		return fmt.Errorf("unknown object type %v", *inspectType)
	}

	reports := make([]ObjectReport, 0, len(args))
	for _, name := range args {
		report, err := inspectObject(name, objectType)
		if err != nil {
			return fmt.Errorf("%v: %w", name, err)
		}
		reports = append(reports, report)
	}

	if *inspectJSONFile != "" {
		return util.WriteJSON(*inspectJSONFile, reports)
	}
	for _, report := range reports {
		ui.Info().Msgf("%v:", report.Object)
		if report.Owner != nil {
			ui.Info().Msgf("  owner %v (%v)", report.Owner.Sid, wellknown.Name(report.Owner.Sid))
		}
		if report.Group != nil {
			ui.Info().Msgf("  group %v (%v)", report.Group.Sid, wellknown.Name(report.Group.Sid))
		}
		for _, entry := range report.DACL {
			ui.Info().Msgf("  %v", entry)
		}
	}
	return nil
}

func inspectObject(name string, objectType winsec.ObjectType) (ObjectReport, error) {
	report := ObjectReport{Object: name}

	sd, err := winsec.GetNamedSecurityDescriptor(name, objectType)
	if err != nil {
		return report, err
	}
	defer sd.Free()

	if owner, ok := sd.Owner(); ok {
		ownerReport := reportSid(owner)
		report.Owner = &ownerReport
	}
	if group, ok := sd.Group(); ok {
		groupReport := reportSid(group)
		report.Group = &groupReport
	}

	daclBytes, err := sd.DACL()
	if err != nil {
		return report, err
	}
	if daclBytes != nil {
		parsed, err := acl.Parse(daclBytes)
		if err != nil {
			return report, fmt.Errorf("parsing DACL %v: %w", util.Hexify(string(daclBytes)), err)
		}
		for _, entry := range parsed.Entries {
			report.DACL = append(report.DACL, entry.String())
		}
	}
	return report, nil
}

func init() {
	inspectType = inspectCmd.Flags().String("type", "file", "Object type: file, service, printer, registry or share")
	inspectJSONFile = inspectCmd.Flags().String("json", "", "Write the reports to this file as JSON instead of printing them")
	Root.AddCommand(inspectCmd)
}
