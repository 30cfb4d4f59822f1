package cli

import (
	"fmt"

	"github.com/lkarlslund/winsec/modules/ui"
	"github.com/lkarlslund/winsec/modules/util"
	"github.com/lkarlslund/winsec/modules/wellknown"
	"github.com/lkarlslund/winsec/modules/winsec"
	"github.com/spf13/cobra"
)

var (
	sidCmd = &cobra.Command{
		Use:   "sid [S-1-... ...]",
		Short: "Describe SIDs given in canonical string form",
		RunE:  describeSids,
	}

	sidJSONFile *string
)

// SidReport is what the sid and inspect commands emit per principal.
type SidReport struct {
	Sid            string   `json:"sid"`
	Name           string   `json:"name,omitempty"`
	Authority      uint64   `json:"authority"`
	SubAuthorities []uint32 `json:"subauthorities"`
}

func reportSid(sid *winsec.Sid) SidReport {
	report := SidReport{
		Sid: sid.String(),
	}
	if name := wellknown.Name(report.Sid); name != report.Sid {
		report.Name = name
	}
	auth := sid.IdentifierAuthority()
	for _, b := range auth {
		report.Authority = report.Authority<<8 | uint64(b)
	}
	count := sid.SubAuthorityCount()
	report.SubAuthorities = make([]uint32, count)
	for i := byte(0); i < count; i++ {
		report.SubAuthorities[i], _ = sid.SubAuthority(i)
	}
	return report
}

func describeSids(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("give me at least one SID in S-1-... form")
	}

	reports := make([]SidReport, 0, len(args))
	for _, arg := range args {
		idAuth, subAuths, err := winsec.ParseStringSid(arg)
		if err != nil {
			return fmt.Errorf("%v: %w", arg, err)
		}
		sid, err := winsec.NewSid(winsec.Native(), idAuth, subAuths...)
		if err != nil {
			return fmt.Errorf("%v: %w", arg, err)
		}
		reports = append(reports, reportSid(sid))
		sid.Free()
	}

	if *sidJSONFile != "" {
		return util.WriteJSON(*sidJSONFile, reports)
	}
	for _, report := range reports {
		if report.Name != "" {
			ui.Info().Msgf("%v (%v): authority %v, subauthorities %v", report.Sid, report.Name, report.Authority, report.SubAuthorities)
		} else {
			ui.Info().Msgf("%v: authority %v, subauthorities %v", report.Sid, report.Authority, report.SubAuthorities)
		}
	}
	return nil
}

func init() {
	sidJSONFile = sidCmd.Flags().String("json", "", "Write the reports to this file as JSON instead of printing them")
	Root.AddCommand(sidCmd)
}
